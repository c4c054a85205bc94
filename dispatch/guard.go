package dispatch

import (
	"sync/atomic"

	"github.com/grovetools/fsdispatch/internal/native"
)

// SuspendGuard holds one native suspension of a queue or group. The guard
// keeps its object alive until Resume.
type SuspendGuard struct {
	obj     native.Object
	resumed atomic.Bool
}

func suspend(obj native.Object) *SuspendGuard {
	native.Retain(obj)
	native.Suspend(obj)
	return &SuspendGuard{obj: obj}
}

// Resume ends the suspension. Only the first call has an effect.
func (g *SuspendGuard) Resume() {
	if g.resumed.CompareAndSwap(false, true) {
		native.Resume(g.obj)
		native.Release(g.obj)
	}
}

// EnterGuard is one unit of outstanding work registered with a Group.
type EnterGuard struct {
	obj  native.Object
	left atomic.Bool
}

// Leave completes the unit of work. Only the first call has an effect, so
// it is safe to both defer it and call it early.
func (g *EnterGuard) Leave() {
	if g.left.CompareAndSwap(false, true) {
		native.GroupLeave(g.obj)
		native.Release(g.obj)
	}
}
