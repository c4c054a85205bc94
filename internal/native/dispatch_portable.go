//go:build !darwin || !cgo

package native

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/fsdispatch/internal/handle"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// Function is a work entry point: it receives the context handle it was
// submitted with.
type Function func(ctx uintptr)

// ApplierFunction is an iteration entry point, called once per index.
type ApplierFunction func(ctx uintptr, i int)

var (
	// WorkFunction forwards to the handler installed with SetWorkHandler.
	WorkFunction Function = callWork
	// ApplyFunction forwards to the handler installed with SetApplyHandler.
	ApplyFunction ApplierFunction = callApply
)

// Backend names the linked implementation.
const Backend = "portable"

var objects = handle.NewRegistry[object]()

type object interface {
	header() *objectHeader
	dispose()
}

type suspender interface {
	suspend()
	resume()
}

type objectHeader struct {
	refs     atomic.Int64
	immortal bool
}

func (h *objectHeader) header() *objectHeader { return h }

func register(obj object) Object {
	obj.header().refs.Store(1)
	return Object(objects.Put(obj))
}

func lookup(o Object) object {
	obj, ok := objects.Load(uintptr(o))
	if !ok {
		panic(fmt.Sprintf("native: use of invalid dispatch object %#x", uintptr(o)))
	}
	return obj
}

// Retain increments the reference count of o.
func Retain(o Object) {
	h := lookup(o).header()
	if h.immortal {
		return
	}
	h.refs.Add(1)
}

// Release decrements the reference count of o and disposes of it at zero.
func Release(o Object) {
	obj := lookup(o)
	h := obj.header()
	if h.immortal {
		return
	}
	switch n := h.refs.Add(-1); {
	case n == 0:
		objects.Delete(uintptr(o))
		obj.dispose()
	case n < 0:
		panic(fmt.Sprintf("native: over-release of dispatch object %#x", uintptr(o)))
	}
}

// Suspend increments the suspension count of a queue or group.
func Suspend(o Object) {
	s, ok := lookup(o).(suspender)
	if !ok {
		panic(fmt.Sprintf("native: dispatch object %#x cannot be suspended", uintptr(o)))
	}
	s.suspend()
}

// Resume decrements the suspension count of a queue or group.
func Resume(o Object) {
	s, ok := lookup(o).(suspender)
	if !ok {
		panic(fmt.Sprintf("native: dispatch object %#x cannot be resumed", uintptr(o)))
	}
	s.resume()
}

func (t Timeout) duration() time.Duration {
	if t > Timeout(1<<63-1) {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(t)
}

// queues

type workItem struct {
	run     func()
	barrier bool
}

type queue struct {
	objectHeader
	id    Object
	label string
	// width bounds concurrently running items; 0 means unbounded.
	width int

	mu       sync.Mutex
	items    []workItem
	running  int
	barrier  bool
	suspends int
}

func (q *queue) dispose() {}

func newQueue(label string, width int, immortal bool) *queue {
	q := &queue{label: label, width: width}
	q.immortal = immortal
	q.id = register(q)
	return q
}

func queueOf(o Object) *queue {
	q, ok := lookup(o).(*queue)
	if !ok {
		panic(fmt.Sprintf("native: dispatch object %#x is not a queue", uintptr(o)))
	}
	return q
}

// enqueue appends an item. The queue stays retained while the item is pending.
func (q *queue) enqueue(it workItem) {
	Retain(q.id)
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.drain()
}

func (q *queue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.suspends == 0 && len(q.items) > 0 && !q.barrier {
		next := q.items[0]
		if next.barrier && q.running > 0 {
			return
		}
		if q.width > 0 && q.running >= q.width {
			return
		}
		q.items = q.items[1:]
		q.running++
		q.barrier = next.barrier
		go q.execute(next)
	}
}

func (q *queue) execute(it workItem) {
	it.run()
	q.mu.Lock()
	q.running--
	if it.barrier {
		q.barrier = false
	}
	q.mu.Unlock()
	q.drain()
	Release(q.id)
}

func (q *queue) sync(run func(), barrier bool) {
	done := make(chan struct{})
	q.enqueue(workItem{run: func() {
		defer close(done)
		run()
	}, barrier: barrier})
	<-done
}

func (q *queue) suspend() {
	q.mu.Lock()
	q.suspends++
	q.mu.Unlock()
}

func (q *queue) resume() {
	q.mu.Lock()
	q.suspends--
	if q.suspends < 0 {
		q.mu.Unlock()
		panic("native: over-resume of dispatch queue " + q.label)
	}
	q.mu.Unlock()
	q.drain()
}

var mainQueue = sync.OnceValue(func() Object {
	return newQueue("com.apple.main-thread", 1, true).id
})

var globalQueues = sync.OnceValue(func() map[int]Object {
	return map[int]Object{
		PriorityHigh:       newQueue("com.apple.root.user-initiated-qos", 0, true).id,
		PriorityDefault:    newQueue("com.apple.root.default-qos", 0, true).id,
		PriorityLow:        newQueue("com.apple.root.utility-qos", 0, true).id,
		PriorityBackground: newQueue("com.apple.root.background-qos", 0, true).id,
	}
})

// MainQueue returns the process-wide serial main queue.
func MainQueue() Object { return mainQueue() }

// GlobalQueue returns the shared concurrent queue for priority, or the null
// handle for an unknown priority.
func GlobalQueue(priority int) Object { return globalQueues()[priority] }

// QueueCreate creates a serial or concurrent queue.
func QueueCreate(label string, concurrent bool) Object {
	width := 1
	if concurrent {
		width = 0
	}
	return newQueue(label, width, false).id
}

// QueueLabel returns the label the queue was created with.
func QueueLabel(q Object) string { return queueOf(q).label }

// SyncF runs fn(ctx) on q and waits for it.
func SyncF(q Object, ctx uintptr, fn Function) {
	queueOf(q).sync(func() { fn(ctx) }, false)
}

// AsyncAndWaitF submits fn(ctx) asynchronously and waits for it.
func AsyncAndWaitF(q Object, ctx uintptr, fn Function) {
	queueOf(q).sync(func() { fn(ctx) }, false)
}

// AsyncF submits fn(ctx) and returns immediately.
func AsyncF(q Object, ctx uintptr, fn Function) {
	queueOf(q).enqueue(workItem{run: func() { fn(ctx) }})
}

// BarrierAsyncF submits fn(ctx) as a barrier and returns immediately.
func BarrierAsyncF(q Object, ctx uintptr, fn Function) {
	queueOf(q).enqueue(workItem{run: func() { fn(ctx) }, barrier: true})
}

// BarrierSyncF runs fn(ctx) as a barrier and waits for it.
func BarrierSyncF(q Object, ctx uintptr, fn Function) {
	queueOf(q).sync(func() { fn(ctx) }, true)
}

// AfterF submits fn(ctx) to q once when has elapsed. A forever deadline never
// fires.
func AfterF(when Timeout, q Object, ctx uintptr, fn Function) {
	if when == TimeoutForever {
		return
	}
	target := queueOf(q)
	Retain(q)
	time.AfterFunc(when.duration(), func() {
		target.enqueue(workItem{run: func() { fn(ctx) }})
		Release(q)
	})
}

// ApplyF calls fn(ctx, i) for every i in [0, n) and waits for all of them.
// Indices run in order on a serial queue and in parallel otherwise.
func ApplyF(n int, q Object, ctx uintptr, fn ApplierFunction) {
	target := queueOf(q)
	if target.width == 1 {
		target.sync(func() {
			for i := 0; i < n; i++ {
				fn(ctx, i)
			}
		}, false)
		return
	}
	target.sync(func() {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := 0; i < n; i++ {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}, false)
}

var onces = xsync.NewMapOf[*int64, *sync.Once]()

// OnceF runs fn(ctx) the first time it is called with pred. pred is set to -1
// once the function has returned.
func OnceF(pred *int64, ctx uintptr, fn Function) {
	if atomic.LoadInt64(pred) == -1 {
		return
	}
	once, _ := onces.LoadOrStore(pred, &sync.Once{})
	once.Do(func() {
		if atomic.LoadInt64(pred) == -1 {
			return
		}
		fn(ctx)
		atomic.StoreInt64(pred, -1)
	})
	onces.Delete(pred)
}

// groups

type group struct {
	objectHeader
	id Object

	mu       sync.Mutex
	pending  int
	drained  chan struct{}
	notifies []func()
	suspends int
}

func (g *group) dispose() {}

func groupOf(o Object) *group {
	g, ok := lookup(o).(*group)
	if !ok {
		panic(fmt.Sprintf("native: dispatch object %#x is not a group", uintptr(o)))
	}
	return g
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// GroupCreate creates an empty group.
func GroupCreate() Object {
	g := &group{drained: closedChan()}
	g.id = register(g)
	return g.id
}

func (g *group) enter() {
	g.mu.Lock()
	if g.pending == 0 {
		g.drained = make(chan struct{})
	}
	g.pending++
	g.mu.Unlock()
}

func (g *group) leave() {
	g.mu.Lock()
	g.pending--
	if g.pending < 0 {
		g.mu.Unlock()
		panic("native: unbalanced dispatch group leave")
	}
	var fire []func()
	if g.pending == 0 {
		close(g.drained)
		if g.suspends == 0 {
			fire, g.notifies = g.notifies, nil
		}
	}
	g.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

func (g *group) suspend() {
	g.mu.Lock()
	g.suspends++
	g.mu.Unlock()
}

func (g *group) resume() {
	g.mu.Lock()
	g.suspends--
	if g.suspends < 0 {
		g.mu.Unlock()
		panic("native: over-resume of dispatch group")
	}
	var fire []func()
	if g.suspends == 0 && g.pending == 0 {
		fire, g.notifies = g.notifies, nil
	}
	g.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// GroupEnter registers one unit of outstanding work.
func GroupEnter(g Object) { groupOf(g).enter() }

// GroupLeave completes one unit of outstanding work.
func GroupLeave(g Object) { groupOf(g).leave() }

// GroupAsyncF submits fn(ctx) to q as a unit of work tracked by g.
func GroupAsyncF(g, q Object, ctx uintptr, fn Function) {
	grp := groupOf(g)
	grp.enter()
	Retain(g)
	queueOf(q).enqueue(workItem{run: func() {
		defer Release(g)
		defer grp.leave()
		fn(ctx)
	}})
}

// GroupNotifyF submits fn(ctx) to q once g has no outstanding work.
func GroupNotifyF(g, q Object, ctx uintptr, fn Function) {
	grp := groupOf(g)
	target := queueOf(q)
	Retain(q)
	submit := func() {
		target.enqueue(workItem{run: func() { fn(ctx) }})
		Release(q)
	}

	grp.mu.Lock()
	if grp.pending == 0 && grp.suspends == 0 {
		grp.mu.Unlock()
		submit()
		return
	}
	grp.notifies = append(grp.notifies, submit)
	grp.mu.Unlock()
}

// GroupWait blocks until g has no outstanding work or timeout elapses. It
// reports whether the group drained.
func GroupWait(g Object, timeout Timeout) bool {
	grp := groupOf(g)
	grp.mu.Lock()
	if grp.pending == 0 {
		grp.mu.Unlock()
		return true
	}
	drained := grp.drained
	grp.mu.Unlock()

	if timeout == TimeoutForever {
		<-drained
		return true
	}
	timer := time.NewTimer(timeout.duration())
	defer timer.Stop()
	select {
	case <-drained:
		return true
	case <-timer.C:
		return false
	}
}

// semaphores

type semaphore struct {
	objectHeader

	mu      sync.Mutex
	value   int64
	waiters []chan struct{}
}

func (s *semaphore) dispose() {}

func semaphoreOf(o Object) *semaphore {
	s, ok := lookup(o).(*semaphore)
	if !ok {
		panic(fmt.Sprintf("native: dispatch object %#x is not a semaphore", uintptr(o)))
	}
	return s
}

// SemaphoreCreate creates a counting semaphore, or returns the null handle
// for a negative value.
func SemaphoreCreate(value int64) Object {
	if value < 0 {
		return 0
	}
	return register(&semaphore{value: value})
}

// SemaphoreSignal increments the semaphore and reports whether a waiter woke.
func SemaphoreSignal(o Object) bool {
	s := semaphoreOf(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value++
	if s.value <= 0 && len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(w)
		return true
	}
	return false
}

// SemaphoreWait decrements the semaphore, blocking while it is negative. It
// reports false if timeout elapsed first.
func SemaphoreWait(o Object, timeout Timeout) bool {
	s := semaphoreOf(o)
	s.mu.Lock()
	s.value--
	if s.value >= 0 {
		s.mu.Unlock()
		return true
	}
	w := make(chan struct{})
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	if timeout == TimeoutForever {
		<-w
		return true
	}
	timer := time.NewTimer(timeout.duration())
	defer timer.Stop()
	select {
	case <-w:
		return true
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, waiter := range s.waiters {
		if waiter == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			s.value++
			return false
		}
	}
	// Signalled between the timer firing and taking the lock.
	return true
}
