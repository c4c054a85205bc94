package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
	"github.com/grovetools/fsdispatch/internal/trampoline"
)

// Group tracks units of outstanding work across queues.
type Group struct {
	obj      native.Object
	released atomic.Bool
}

// NewGroup creates an empty group.
func NewGroup() (*Group, error) {
	obj := native.GroupCreate()
	if obj == 0 {
		return nil, errors.NativeResourceUnavailable("group")
	}
	return &Group{obj: obj}, nil
}

// Enter registers one unit of work. The guard's Leave must be called exactly
// once, typically with defer.
func (g *Group) Enter() *EnterGuard {
	native.Retain(g.obj)
	native.GroupEnter(g.obj)
	return &EnterGuard{obj: g.obj}
}

// Async submits work to q as a unit of work tracked by the group.
func (g *Group) Async(q *Queue, work func()) {
	ctx, fn := trampoline.Once(work)
	native.GroupAsyncF(g.obj, q.obj, ctx, fn)
}

// Notify submits work to q once the group has no outstanding work. Units
// entered before that happens delay it.
func (g *Group) Notify(q *Queue, work func()) {
	ctx, fn := trampoline.Once(work)
	native.GroupNotifyF(g.obj, q.obj, ctx, fn)
}

// Wait blocks until the group has no outstanding work.
func (g *Group) Wait() {
	native.GroupWait(g.obj, native.TimeoutForever)
}

// WaitTimeout blocks until the group has no outstanding work or d elapses,
// and reports whether the group drained. A timed-out wait leaves the
// outstanding work registered.
func (g *Group) WaitTimeout(d time.Duration) bool {
	return native.GroupWait(g.obj, timeoutFromDuration(d))
}

// WaitContext blocks until the group drains or ctx is done. It polls with
// bounded native waits, so a cancelled wait leaves nothing registered with
// the group.
func (g *Group) WaitContext(ctx context.Context) error {
	if ctx.Done() == nil {
		g.Wait()
		return nil
	}
	for {
		if g.WaitTimeout(waitContextPoll) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "group did not drain")
		default:
		}
	}
}

const waitContextPoll = 10 * time.Millisecond

// Suspend defers the group's notifications until the guard is resumed.
func (g *Group) Suspend() *SuspendGuard {
	return suspend(g.obj)
}

// Clone returns a new reference to the same group.
func (g *Group) Clone() *Group {
	native.Retain(g.obj)
	return &Group{obj: g.obj}
}

// Release gives up this reference. Later calls on the same value do nothing.
func (g *Group) Release() {
	if g.released.CompareAndSwap(false, true) {
		native.Release(g.obj)
	}
}
