package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/trampoline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T) *Group {
	t.Helper()
	g, err := NewGroup()
	require.NoError(t, err)
	t.Cleanup(g.Release)
	return g
}

func TestGroupWaitsForEnterGuards(t *testing.T) {
	g := newGroup(t)

	const k = 3
	guards := make([]*EnterGuard, k)
	for i := range guards {
		guards[i] = g.Enter()
	}

	assert.False(t, g.WaitTimeout(20*time.Millisecond), "wait returned with guards live")

	for i, guard := range guards {
		guard.Leave()
		if i < k-1 {
			assert.False(t, g.WaitTimeout(time.Millisecond))
		}
	}
	// Leaving twice must not unbalance the group.
	guards[0].Leave()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after all guards left")
	}
}

func TestGroupLeaveOnPanic(t *testing.T) {
	g := newGroup(t)

	func() {
		defer func() { _ = recover() }()
		defer g.Enter().Leave()
		panic("boom")
	}()

	assert.True(t, g.WaitTimeout(time.Second))
}

func TestGroupAsyncAndNotify(t *testing.T) {
	g := newGroup(t)
	q := newQueue(t, "com.grovetools.test.group", Concurrent)

	var completed atomic.Int32
	for i := 0; i < 10; i++ {
		g.Async(q, func() {
			time.Sleep(time.Millisecond)
			completed.Add(1)
		})
	}

	notified := make(chan int32, 1)
	g.Notify(q, func() { notified <- completed.Load() })

	select {
	case n := <-notified:
		assert.Equal(t, int32(10), n)
	case <-time.After(5 * time.Second):
		t.Fatal("notify never ran")
	}
}

func TestNotifyDelayedByLaterEnter(t *testing.T) {
	g := newGroup(t)
	q := newQueue(t, "com.grovetools.test.notify", Serial)

	first := g.Enter()
	notified := make(chan struct{})
	g.Notify(q, func() { close(notified) })

	second := g.Enter()
	first.Leave()

	select {
	case <-notified:
		t.Fatal("notify ran while a unit was still outstanding")
	case <-time.After(30 * time.Millisecond):
	}

	second.Leave()
	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("notify never ran")
	}
}

func TestTimedOutWaitKeepsRegistration(t *testing.T) {
	g := newGroup(t)
	guard := g.Enter()

	assert.False(t, g.WaitTimeout(10*time.Millisecond))
	assert.False(t, g.WaitTimeout(10*time.Millisecond), "timed out wait must not decrement")

	guard.Leave()
	assert.True(t, g.WaitTimeout(time.Second))
}

func TestGroupWaitContext(t *testing.T) {
	g := newGroup(t)
	guard := g.Enter()

	before := trampoline.Outstanding()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.WaitContext(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout))
	assert.LessOrEqual(t, trampoline.Outstanding(), before, "a cancelled wait leaves no closure behind")

	guard.Leave()
	assert.NoError(t, g.WaitContext(context.Background()))
}

func TestGroupCloneAndConcurrentWaiters(t *testing.T) {
	g := newGroup(t)
	clone := g.Clone()
	defer clone.Release()

	guard := g.Enter()
	results := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() { results <- clone.WaitTimeout(5 * time.Second) }()
	}
	time.Sleep(10 * time.Millisecond)
	guard.Leave()

	for i := 0; i < 4; i++ {
		assert.True(t, <-results)
	}
}
