// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package fiber

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/concurrency"
	"github.com/momentics/hioload-fiber/scheduler"
)

const waitFor = 10 * time.Second

type backend struct {
	name string
	make func(t *testing.T, opts ...Option) api.Fiber
}

func newService(t *testing.T) *scheduler.Service {
	t.Helper()
	svc := scheduler.New()
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc
}

func backends() []backend {
	return []backend{
		{"thread", func(t *testing.T, opts ...Option) api.Fiber {
			opts = append([]Option{WithScheduler(newService(t))}, opts...)
			return NewThreadFiber(opts...)
		}},
		{"pool", func(t *testing.T, opts ...Option) api.Fiber {
			exec := concurrency.NewExecutor(2)
			t.Cleanup(exec.Close)
			opts = append([]Option{WithScheduler(newService(t))}, opts...)
			return NewPoolFiber(exec, opts...)
		}},
		{"sync", func(t *testing.T, opts ...Option) api.Fiber {
			opts = append([]Option{WithScheduler(newService(t))}, opts...)
			return NewSyncFiber(opts...)
		}},
	}
}

// forEachBackend runs fn against every backend with a fresh fiber that is
// stopped on cleanup.
func forEachBackend(t *testing.T, fn func(t *testing.T, f api.Fiber)) {
	for _, b := range backends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			f := b.make(t)
			t.Cleanup(func() { _ = f.Stop() })
			fn(t, f)
		})
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal(msg)
	}
}

func TestFiber_ScheduleBeforeStart(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		fired := make(chan struct{})
		_, err := f.Schedule(func() { close(fired) }, time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, f.Start())
		waitClosed(t, fired, "timer scheduled before start never fired")
	})
}

func TestFiber_ScheduleAndCancelBeforeStart(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		forEachBackend(t, func(t *testing.T, f api.Fiber) {
			var executed atomic.Bool
			control, err := f.Schedule(func() { executed.Store(true) }, 0)
			require.NoError(t, err)

			ran := make(chan struct{})
			_, err = f.Schedule(func() { close(ran) }, 0)
			require.NoError(t, err)

			control.Cancel()
			require.NoError(t, f.Start())

			waitClosed(t, ran, "non-cancelled timer never fired")
			assert.False(t, executed.Load(), "cancelled timer fired")
			assert.True(t, control.Cancelled())
		})
	}
}

func TestFiber_ScheduleOne(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		fired := make(chan struct{})
		_, err := f.Schedule(func() { close(fired) }, time.Millisecond)
		require.NoError(t, err)
		waitClosed(t, fired, "timer never fired")
	})
}

func TestFiber_ScheduleInterval(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		var count atomic.Int32
		reached := make(chan struct{})
		_, err := f.ScheduleOnInterval(func() {
			if count.Add(1) == 5 {
				close(reached)
			}
		}, 15*time.Millisecond, 15*time.Millisecond)
		require.NoError(t, err)
		waitClosed(t, reached, "interval timer fired fewer than 5 times")
	})
}

func TestFiber_DoubleStartFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		err := f.Start()
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrAlreadyStarted)
		assert.Equal(t, api.ErrCodeAlreadyStarted, api.CodeOf(err))
		assert.Equal(t, api.StateRunning, f.State())

		ran := make(chan struct{})
		require.NoError(t, f.Enqueue(func() { close(ran) }))
		waitClosed(t, ran, "fiber stopped working after second start")
	})
}

func TestFiber_EnqueueBeforeStartRunsInOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		var got []int
		done := make(chan struct{})
		for i := 0; i < 100; i++ {
			i := i
			require.NoError(t, f.Enqueue(func() {
				got = append(got, i)
				if i == 99 {
					close(done)
				}
			}))
		}
		assert.Equal(t, 100, f.Pending())
		require.NoError(t, f.Start())
		waitClosed(t, done, "queued tasks never ran")
		for i, v := range got {
			require.Equal(t, i, v)
		}
	})
}

func TestFiber_FIFOUnderConcurrentProducers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		const producers, perProducer = 4, 500
		last := make([]int, producers)
		for i := range last {
			last[i] = -1
		}
		var outOfOrder atomic.Int32
		var executed atomic.Int32
		done := make(chan struct{})

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					i := i
					_ = f.Enqueue(func() {
						// runs serialized: plain slice access is safe here
						if last[p] != i-1 {
							outOfOrder.Add(1)
						}
						last[p] = i
						if executed.Add(1) == producers*perProducer {
							close(done)
						}
					})
				}
			}(p)
		}
		wg.Wait()
		waitClosed(t, done, "not all tasks executed")
		assert.Zero(t, outOfOrder.Load())
	})
}

func TestFiber_StopDiscardsQueuedTasks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		started := make(chan struct{})
		release := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			_ = f.Enqueue(func() {
				close(started)
				<-release
				close(finished)
			})
		}()
		waitClosed(t, started, "blocking task never started")

		var secondRan atomic.Bool
		require.NoError(t, f.Enqueue(func() { secondRan.Store(true) }))
		require.NoError(t, f.Stop())
		assert.Equal(t, api.StateStopped, f.State())

		close(release)
		waitClosed(t, finished, "in-flight task did not complete")
		waitClosed(t, f.Done(), "backing goroutine not released")
		assert.False(t, secondRan.Load(), "queued task ran after stop")
	})
}

func TestFiber_OperationsAfterStop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		require.NoError(t, f.Stop())
		require.NoError(t, f.Stop(), "stop is idempotent")

		assert.ErrorIs(t, f.Enqueue(func() {}), api.ErrFiberStopped)
		_, err := f.Schedule(func() {}, 0)
		assert.ErrorIs(t, err, api.ErrFiberStopped)
		_, err = f.ScheduleOnInterval(func() {}, 0, time.Millisecond)
		assert.ErrorIs(t, err, api.ErrFiberStopped)
		assert.ErrorIs(t, f.Start(), api.ErrAlreadyStarted)
	})
}

func TestFiber_StopCancelsTimers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		var fired atomic.Int32
		oneShot, err := f.Schedule(func() { fired.Add(1) }, time.Hour)
		require.NoError(t, err)
		recurring, err := f.ScheduleOnInterval(func() { fired.Add(1) }, time.Hour, time.Hour)
		require.NoError(t, err)

		require.Equal(t, 2, f.(interface{ TimerCount() int }).TimerCount())
		require.NoError(t, f.Stop())
		assert.True(t, oneShot.Cancelled())
		assert.True(t, recurring.Cancelled())
		assert.Zero(t, f.(interface{ TimerCount() int }).TimerCount())
		assert.Zero(t, fired.Load())
	})
}

func TestFiber_TimerLeavesOwnerWhenDone(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		counter := f.(interface{ TimerCount() int })
		fired := make(chan struct{})
		_, err := f.Schedule(func() { close(fired) }, 0)
		require.NoError(t, err)
		waitClosed(t, fired, "timer never fired")
		assert.Eventually(t, func() bool { return counter.TimerCount() == 0 }, waitFor, time.Millisecond)

		tc, err := f.ScheduleOnInterval(func() {}, time.Hour, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, counter.TimerCount())
		tc.Cancel()
		tc.Cancel()
		assert.Zero(t, counter.TimerCount())
	})
}

func TestFiber_PanicDoesNotWedge(t *testing.T) {
	for _, b := range backends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			var panics atomic.Int32
			f := b.make(t, WithPanicHandler(func(string, any) { panics.Add(1) }))
			t.Cleanup(func() { _ = f.Stop() })
			require.NoError(t, f.Start())

			ran := make(chan struct{})
			require.NoError(t, f.Enqueue(func() { panic("callback failure") }))
			require.NoError(t, f.Enqueue(func() { close(ran) }))
			waitClosed(t, ran, "fiber wedged after panic")
			assert.EqualValues(t, 1, panics.Load())
		})
	}
}

func TestFiber_StopFromInsideTask(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f api.Fiber) {
		require.NoError(t, f.Start())
		var after atomic.Bool
		stopped := make(chan error, 1)
		require.NoError(t, f.Enqueue(func() {
			stopped <- f.Stop()
		}))
		_ = f.Enqueue(func() { after.Store(true) })

		select {
		case err := <-stopped:
			require.NoError(t, err)
		case <-time.After(waitFor):
			t.Fatal("stop from inside the fiber deadlocked")
		}
		waitClosed(t, f.Done(), "backing goroutine not released")
		assert.False(t, after.Load())
	})
}
