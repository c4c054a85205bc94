package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
	"github.com/grovetools/fsdispatch/internal/trampoline"
	"github.com/grovetools/fsdispatch/logging"
)

var log = logging.NewLogger("dispatch")

var mainQueue = sync.OnceValue(native.MainQueue)

// Queue is one reference to a native dispatch queue.
type Queue struct {
	obj      native.Object
	kind     Kind
	released atomic.Bool
}

// Main returns a new reference to the main queue.
func Main() *Queue {
	obj := mainQueue()
	native.Retain(obj)
	return &Queue{obj: obj, kind: KindMain}
}

// Global returns a new reference to the shared concurrent queue for p.
func Global(p Priority) (*Queue, error) {
	if !p.Valid() {
		return nil, errors.InvalidInput("priority", fmt.Sprintf("%d is not a global queue priority", int(p)))
	}
	obj := native.GlobalQueue(int(p))
	if obj == 0 {
		return nil, errors.NativeResourceUnavailable("global queue").WithDetail("priority", p.String())
	}
	native.Retain(obj)
	return &Queue{obj: obj, kind: KindGlobal}, nil
}

// Create makes a new custom queue. The label must not contain NUL bytes.
func Create(label string, attr Attr) (*Queue, error) {
	if strings.IndexByte(label, 0) >= 0 {
		return nil, errors.InvalidInput("queue label", "contains a NUL byte").WithDetail("label", label)
	}
	if attr != Serial && attr != Concurrent {
		return nil, errors.InvalidInput("queue attribute", attr.String())
	}
	obj := native.QueueCreate(label, attr == Concurrent)
	if obj == 0 {
		return nil, errors.NativeResourceUnavailable("queue").WithDetail("label", label)
	}
	log.WithField("label", label).WithField("attr", attr).Debug("Created queue")
	return &Queue{obj: obj, kind: KindCustom}, nil
}

// Kind reports how the queue was obtained.
func (q *Queue) Kind() Kind { return q.kind }

// Native returns the underlying handle for packages that schedule other
// native services on this queue. The handle is only valid while q is.
func (q *Queue) Native() native.Object { return q.obj }

// Label returns the queue's label as the native layer reports it, or "".
func (q *Queue) Label() string { return native.QueueLabel(q.obj) }

func (q *Queue) String() string {
	return fmt.Sprintf("%s queue %q", q.kind, q.Label())
}

// Clone returns a new reference to the same queue.
func (q *Queue) Clone() *Queue {
	native.Retain(q.obj)
	return &Queue{obj: q.obj, kind: q.kind}
}

// Release gives up this reference. Later calls on the same value do nothing.
func (q *Queue) Release() {
	if q.released.CompareAndSwap(false, true) {
		native.Release(q.obj)
	}
}

// Sync runs work on the queue and waits for it to finish. Calling Sync on a
// serial queue from work already running on it deadlocks.
func (q *Queue) Sync(work func()) {
	slot := trampoline.NewSlot(work)
	defer slot.Close()
	native.SyncF(q.obj, slot.Context(), slot.Function())
}

// AsyncAndWait submits work asynchronously and waits for it to finish.
func (q *Queue) AsyncAndWait(work func()) {
	slot := trampoline.NewSlot(work)
	defer slot.Close()
	native.AsyncAndWaitF(q.obj, slot.Context(), slot.Function())
}

// Async submits work and returns immediately.
func (q *Queue) Async(work func()) {
	ctx, fn := trampoline.Once(work)
	native.AsyncF(q.obj, ctx, fn)
}

// After submits work once delay has elapsed. It never runs earlier; it may
// run later. A delay of Forever never runs work and schedules nothing.
func (q *Queue) After(delay time.Duration, work func()) {
	when := timeoutFromDuration(delay)
	if when == native.TimeoutForever {
		return
	}
	ctx, fn := trampoline.Once(work)
	native.AfterF(when, q.obj, ctx, fn)
}

// Apply calls work(i) for every i in [0, n) exactly once and waits for all
// calls. On a concurrent queue the calls may overlap, so work must be safe for
// concurrent use.
func (q *Queue) Apply(n int, work func(i int)) {
	if n <= 0 {
		return
	}
	ctx, fn, release := trampoline.Applier(work)
	defer release()
	native.ApplyF(n, q.obj, ctx, fn)
}

// BarrierAsync submits work that runs alone on a concurrent queue: after
// everything submitted before it and before anything submitted after it.
func (q *Queue) BarrierAsync(work func()) {
	ctx, fn := trampoline.Once(work)
	native.BarrierAsyncF(q.obj, ctx, fn)
}

// BarrierSync is BarrierAsync that waits for work to finish.
func (q *Queue) BarrierSync(work func()) {
	slot := trampoline.NewSlot(work)
	defer slot.Close()
	native.BarrierSyncF(q.obj, slot.Context(), slot.Function())
}

// Suspend stops the queue from starting new work until the guard is resumed.
// Work already running is not interrupted. Guards nest.
func (q *Queue) Suspend() *SuspendGuard {
	return suspend(q.obj)
}

// SyncValue runs work on q, waits, and returns its result.
func SyncValue[T any](q *Queue, work func() T) T {
	var result T
	q.Sync(func() { result = work() })
	return result
}

// AsyncAndWaitValue is SyncValue issued through AsyncAndWait.
func AsyncAndWaitValue[T any](q *Queue, work func() T) T {
	var result T
	q.AsyncAndWait(func() { result = work() })
	return result
}
