package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
)

// inbox is a TaskQueue that only records submissions; tests run them by hand.
type inbox struct {
	mu     sync.Mutex
	tasks  []func()
	reject bool
}

func (q *inbox) Enqueue(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return api.ErrFiberStopped
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *inbox) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

func newMockService(t *testing.T) (*Service, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	svc := New(WithClock(mock))
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc, mock
}

// advanceUntil moves the mock clock in small steps until cond holds. Small
// steps keep the test independent of when the service goroutine parks.
func advanceUntil(t *testing.T, mock *clock.Mock, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		mock.Add(time.Millisecond)
		return cond()
	}, 5*time.Second, time.Millisecond)
}

// settle gives the service goroutine time to observe the current clock.
func settle() { time.Sleep(20 * time.Millisecond) }

func TestService_OneShotFiresAfterDelay(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}
	start := mock.Now()

	var ranAt time.Time
	_, err := svc.Schedule(q, func() { ranAt = mock.Now() }, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())

	settle()
	mock.Add(5 * time.Millisecond)
	settle()
	assert.Zero(t, q.len(), "fired before its delay")

	advanceUntil(t, mock, func() bool { return q.len() == 1 })
	q.runAll()
	assert.False(t, ranAt.Before(start.Add(10*time.Millisecond)))
	assert.Zero(t, svc.Len())
}

func TestService_FiresInDueOrder(t *testing.T) {
	svc, mock := newMockService(t)

	var mu sync.Mutex
	var order []int
	q := &inbox{}
	for _, d := range []int{30, 10, 20, 10} {
		d := d
		_, err := svc.Schedule(q, func() {
			mu.Lock()
			order = append(order, d)
			mu.Unlock()
		}, time.Duration(d)*time.Millisecond)
		require.NoError(t, err)
	}
	advanceUntil(t, mock, func() bool { return q.len() == 4 })
	q.runAll()
	assert.Equal(t, []int{10, 10, 20, 30}, order)
}

func TestService_CancelBeforeFire(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}

	tc, err := svc.Schedule(q, func() { t.Error("cancelled timer ran") }, 5*time.Millisecond)
	require.NoError(t, err)
	tc.Cancel()
	tc.Cancel()
	assert.True(t, tc.Cancelled())
	assert.Zero(t, svc.Len())

	marker, err := svc.Schedule(q, func() {}, 10*time.Millisecond)
	require.NoError(t, err)
	advanceUntil(t, mock, func() bool { return q.len() == 1 })
	q.runAll()
	assert.False(t, marker.Cancelled())
}

func TestService_CancelAfterSubmissionSuppressesAction(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}
	ran := false
	tc, err := svc.Schedule(q, func() { ran = true }, time.Millisecond)
	require.NoError(t, err)
	advanceUntil(t, mock, func() bool { return q.len() == 1 })

	tc.Cancel()
	q.runAll()
	assert.False(t, ran)
}

func TestService_RecurringSkipsWhileQueued(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}
	count := 0
	tc, err := svc.ScheduleOnInterval(q, func() { count++ }, time.Millisecond, time.Millisecond)
	require.NoError(t, err)

	advanceUntil(t, mock, func() bool { return q.len() == 1 })
	for i := 0; i < 20; i++ {
		mock.Add(time.Millisecond)
	}
	settle()
	assert.Equal(t, 1, q.len(), "a recurring timer keeps at most one invocation queued")

	q.runAll()
	assert.Equal(t, 1, count)
	advanceUntil(t, mock, func() bool { return q.len() == 1 })
	q.runAll()
	assert.Equal(t, 2, count)

	tc.Cancel()
	assert.Zero(t, svc.Len())
}

func TestService_RecurringFixedRate(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}
	var fired []time.Time
	start := mock.Now()
	_, err := svc.ScheduleOnInterval(q, func() { fired = append(fired, mock.Now()) }, 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	for len(fired) < 3 {
		advanceUntil(t, mock, func() bool { return q.len() == 1 })
		q.runAll()
	}
	for i, at := range fired {
		assert.False(t, at.Before(start.Add(time.Duration(i+1)*10*time.Millisecond)), "firing %d too early", i)
	}
}

func TestService_RejectedSubmissionCancelsTimer(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{reject: true}
	tc, err := svc.ScheduleOnInterval(q, func() {}, time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	advanceUntil(t, mock, tc.Cancelled)
	assert.Eventually(t, func() bool { return svc.Len() == 0 }, time.Second, time.Millisecond)
}

func TestService_OnDone(t *testing.T) {
	svc, mock := newMockService(t)
	q := &inbox{}

	oneShot, err := svc.NewTimer(q, func() {}, time.Millisecond, 0)
	require.NoError(t, err)
	var done []uint64
	var mu sync.Mutex
	record := func(tm *Timer) {
		mu.Lock()
		done = append(done, tm.ID())
		mu.Unlock()
	}
	oneShot.OnDone(record)
	require.NoError(t, svc.Arm(oneShot))

	recurring, err := svc.NewTimer(q, func() {}, time.Hour, time.Hour)
	require.NoError(t, err)
	recurring.OnDone(record)
	require.NoError(t, svc.Arm(recurring))
	assert.True(t, recurring.Recurring())
	assert.False(t, oneShot.Recurring())

	advanceUntil(t, mock, func() bool { return q.len() == 1 })
	q.runAll()
	recurring.Cancel()
	assert.Equal(t, []uint64{oneShot.ID(), recurring.ID()}, done)
}

func TestService_ArmRules(t *testing.T) {
	svc, _ := newMockService(t)
	q := &inbox{}

	tm, err := svc.NewTimer(q, func() {}, time.Hour, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Arm(tm))
	assert.ErrorIs(t, svc.Arm(tm), api.ErrInvalidArgument)

	cancelled, err := svc.NewTimer(q, func() {}, time.Hour, 0)
	require.NoError(t, err)
	cancelled.Cancel()
	require.NoError(t, svc.Arm(cancelled))
	assert.Equal(t, 1, svc.Len())

	other := New()
	foreign, err := other.NewTimer(q, func() {}, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Arm(foreign), api.ErrInvalidArgument)

	_, err = svc.NewTimer(nil, func() {}, 0, 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = svc.ScheduleOnInterval(q, func() {}, 0, 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestService_Shutdown(t *testing.T) {
	svc, _ := newMockService(t)
	q := &inbox{}
	_, err := svc.Schedule(q, func() {}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown())
	require.NoError(t, svc.Shutdown())
	assert.Zero(t, svc.Len())

	_, err = svc.Schedule(q, func() {}, 0)
	assert.True(t, errors.Is(err, api.ErrSchedulerClosed))
	assert.ErrorIs(t, svc.Start(), api.ErrSchedulerClosed)
}

func TestService_ArmBeforeStart(t *testing.T) {
	mock := clock.NewMock()
	svc := New(WithClock(mock))
	t.Cleanup(func() { _ = svc.Shutdown() })
	q := &inbox{}
	_, err := svc.Schedule(q, func() {}, time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	advanceUntil(t, mock, func() bool { return q.len() == 1 })
}
