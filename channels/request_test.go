package channels

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doubleReq = Request[int, int]

func TestSendRequest_Reply(t *testing.T) {
	svc := newService(t)
	requester := startFiber(t, svc)
	responder := startFiber(t, svc)

	requests := New[*doubleReq]()
	_, err := requests.Subscribe(responder, func(r *doubleReq) {
		r.Reply(r.Message() * 2)
		r.Reply(-1)
	})
	require.NoError(t, err)

	replies := &recorder[int]{}
	var timeouts atomic.Int32
	_, err = SendRequest(requester, requests, 21, replies.add, func() { timeouts.Add(1) }, 200*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return replies.len() == 1 }, waitFor, time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []int{42}, replies.values(), "only the first reply is delivered")
	assert.Zero(t, timeouts.Load())
	assert.Zero(t, requester.(interface{ TimerCount() int }).TimerCount())
}

func TestSendRequest_Timeout(t *testing.T) {
	requester := startFiber(t, newService(t))
	requests := New[*doubleReq]()

	var replies, timeouts atomic.Int32
	_, err := SendRequest(requester, requests, 1,
		func(int) { replies.Add(1) },
		func() { timeouts.Add(1) },
		20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return timeouts.Load() == 1 }, waitFor, time.Millisecond)
	assert.Zero(t, replies.Load())
}

func TestSendRequest_LateReplyIgnored(t *testing.T) {
	svc := newService(t)
	requester := startFiber(t, svc)
	responder := startFiber(t, svc)

	requests := New[*doubleReq]()
	held := make(chan *doubleReq, 1)
	_, err := requests.Subscribe(responder, func(r *doubleReq) { held <- r })
	require.NoError(t, err)

	var replies, timeouts atomic.Int32
	_, err = SendRequest(requester, requests, 1,
		func(int) { replies.Add(1) },
		func() { timeouts.Add(1) },
		20*time.Millisecond)
	require.NoError(t, err)

	r := <-held
	require.Eventually(t, func() bool { return timeouts.Load() == 1 }, waitFor, time.Millisecond)
	assert.False(t, r.Reply(2), "requester stopped listening after the timeout")
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, replies.Load())
}

func TestSendRequest_Abandon(t *testing.T) {
	requester := startFiber(t, newService(t))
	requests := New[*doubleReq]()

	var calls atomic.Int32
	handle, err := SendRequest(requester, requests, 1,
		func(int) { calls.Add(1) },
		func() { calls.Add(1) },
		20*time.Millisecond)
	require.NoError(t, err)
	handle.Unsubscribe()
	handle.Unsubscribe()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestSendRequest_StoppedFiber(t *testing.T) {
	requester := startFiber(t, newService(t))
	require.NoError(t, requester.Stop())
	_, err := SendRequest(requester, New[*doubleReq](), 1, func(int) {}, func() {}, time.Second)
	assert.Error(t, err)
}
