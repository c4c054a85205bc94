// Package native is the boundary to the platform dispatch and file-event
// services.
//
// On darwin with cgo enabled it calls libdispatch and CoreServices directly.
// Everywhere else a portable backend provides the same contract in Go:
// reference-counted objects, serial and concurrent queues, groups,
// semaphores, and a batching file-event stream built on fsnotify.
//
// Nothing above this package knows which backend is linked. Callers hand the
// native layer an opaque context (a handle, never a Go pointer) together with
// one of the universal entry points exported here; the entry points forward
// to the handlers installed by the trampoline and fsevents packages.
package native

import (
	"sync/atomic"
)

// Object is a reference-counted native handle. Zero is the null handle.
type Object uintptr

// Timeout is a relative deadline: nanoseconds from the moment the native call
// is issued. TimeoutForever never expires.
type Timeout uint64

const (
	TimeoutNow     Timeout = 0
	TimeoutForever Timeout = ^Timeout(0)
)

// Global queue priorities, as understood by GlobalQueue.
const (
	PriorityHigh       = 2
	PriorityDefault    = 0
	PriorityLow        = -2
	PriorityBackground = -32768
)

// MaxExclusionPaths is the most paths a stream accepts for exclusion.
const MaxExclusionPaths = 8

// StreamContext is the context block copied into a stream at creation. Info
// is the handle passed back to every callback and context hook.
type StreamContext struct {
	Version int
	Info    uintptr
}

// ContextHandlers receive the stream context lifecycle calls. Retain runs
// once when the stream copies the context, Release once when the stream is
// deallocated.
type ContextHandlers struct {
	Retain   func(info uintptr)
	Release  func(info uintptr)
	Describe func(info uintptr) string
}

// StreamHandler receives one batch of file events. The three slices always
// have length n on well-behaved native layers; the handler is expected to
// check.
type StreamHandler func(stream Object, info uintptr, n int, paths []string, flags []uint32, ids []uint64)

var (
	workHandler    atomic.Pointer[func(ctx uintptr)]
	applyHandler   atomic.Pointer[func(ctx uintptr, i int)]
	streamHandler  atomic.Pointer[StreamHandler]
	contextHandler atomic.Pointer[ContextHandlers]
)

// SetWorkHandler installs the body of WorkFunction.
func SetWorkHandler(h func(ctx uintptr)) { workHandler.Store(&h) }

// SetApplyHandler installs the body of ApplyFunction.
func SetApplyHandler(h func(ctx uintptr, i int)) { applyHandler.Store(&h) }

// SetStreamHandler installs the body of StreamCallback.
func SetStreamHandler(h StreamHandler) { streamHandler.Store(&h) }

// SetContextHandlers installs the stream context hooks.
func SetContextHandlers(h ContextHandlers) { contextHandler.Store(&h) }

func callWork(ctx uintptr) {
	h := workHandler.Load()
	if h == nil {
		panic("native: work function invoked before a handler was installed")
	}
	(*h)(ctx)
}

func callApply(ctx uintptr, i int) {
	h := applyHandler.Load()
	if h == nil {
		panic("native: apply function invoked before a handler was installed")
	}
	(*h)(ctx, i)
}

func callStream(stream Object, info uintptr, n int, paths []string, flags []uint32, ids []uint64) {
	h := streamHandler.Load()
	if h == nil {
		panic("native: stream callback invoked before a handler was installed")
	}
	(*h)(stream, info, n, paths, flags, ids)
}

func contextRetain(info uintptr) {
	if h := contextHandler.Load(); h != nil && h.Retain != nil {
		h.Retain(info)
	}
}

func contextRelease(info uintptr) {
	if h := contextHandler.Load(); h != nil && h.Release != nil {
		h.Release(info)
	}
}

func contextDescribe(info uintptr) string {
	if h := contextHandler.Load(); h != nil && h.Describe != nil {
		return h.Describe(info)
	}
	return ""
}
