package dispatch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
	"github.com/grovetools/fsdispatch/internal/trampoline"
)

// Semaphore is a native counting semaphore.
type Semaphore struct {
	obj      native.Object
	released atomic.Bool
}

// NewSemaphore creates a semaphore with the given starting value, which must
// not be negative.
func NewSemaphore(value int) (*Semaphore, error) {
	if value < 0 {
		return nil, errors.InvalidInput("semaphore value", fmt.Sprintf("%d is negative", value))
	}
	obj := native.SemaphoreCreate(int64(value))
	if obj == 0 {
		return nil, errors.NativeResourceUnavailable("semaphore")
	}
	return &Semaphore{obj: obj}, nil
}

// Signal increments the semaphore and reports whether a waiter was woken.
func (s *Semaphore) Signal() bool { return native.SemaphoreSignal(s.obj) }

// Wait decrements the semaphore, blocking while its value is negative.
func (s *Semaphore) Wait() { native.SemaphoreWait(s.obj, native.TimeoutForever) }

// WaitTimeout is Wait bounded by d. It reports false if d elapsed first.
func (s *Semaphore) WaitTimeout(d time.Duration) bool {
	return native.SemaphoreWait(s.obj, timeoutFromDuration(d))
}

// Clone returns a new reference to the same semaphore.
func (s *Semaphore) Clone() *Semaphore {
	native.Retain(s.obj)
	return &Semaphore{obj: s.obj}
}

// Release gives up this reference. Later calls on the same value do nothing.
func (s *Semaphore) Release() {
	if s.released.CompareAndSwap(false, true) {
		native.Release(s.obj)
	}
}

// Once runs a function at most once, through the native once predicate.
// A Once must not be copied after first use.
type Once struct {
	pred int64
}

// Do calls f if and only if no earlier Do on o has run. Concurrent callers
// block until the first call returns.
func (o *Once) Do(f func()) {
	ctx, fn := trampoline.Once(f)
	native.OnceF(&o.pred, ctx, fn)
	// Losers never had their closure invoked.
	trampoline.Drop(ctx)
}
