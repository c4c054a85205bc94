// Package trampoline turns Go closures into (context, entry point) pairs the
// native layer can call back.
//
// Every closure is parked in a handle registry; the context the native layer
// sees is the handle. One universal entry point per call shape looks the
// handle up and dispatches according to the discipline the closure was
// registered with:
//
//   - Once: owned, call-once. The entry point consumes the handle.
//   - Slot: holds one closure or nothing. Invocation takes the closure out,
//     so it never runs twice.
//   - Applier: borrowed, call-many. The entry point never frees the handle;
//     the caller releases it after the native call returns.
package trampoline

import (
	"fmt"
	"sync"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/handle"
	"github.com/grovetools/fsdispatch/internal/native"
)

var registry = handle.NewRegistry[any]()

type invoker interface {
	invoke(ctx uintptr)
}

func init() {
	native.SetWorkHandler(work)
	native.SetApplyHandler(apply)
}

func work(ctx uintptr) {
	v, ok := registry.Load(ctx)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("work invoked with unknown context %#x", ctx)))
	}
	inv, ok := v.(invoker)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("work invoked with %T context", v)))
	}
	inv.invoke(ctx)
}

func apply(ctx uintptr, i int) {
	v, ok := registry.Load(ctx)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("apply invoked with unknown context %#x", ctx)))
	}
	f, ok := v.(applierFunc)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("apply invoked with %T context", v)))
	}
	f(i)
}

type onceFunc func()

func (f onceFunc) invoke(ctx uintptr) {
	// A second dispatch of the same context finds nothing to consume.
	if _, ok := registry.LoadAndDelete(ctx); ok {
		f()
	}
}

// Once boxes f for a single invocation. Ownership passes to the native layer
// together with the returned context; if the work is never submitted the
// caller must Drop the context.
func Once(f func()) (uintptr, native.Function) {
	return registry.Put(onceFunc(f)), native.WorkFunction
}

// Slot holds at most one closure. Whoever takes it first, the native layer via
// its entry point or the owner via Close, gets it; the other gets nothing.
type Slot struct {
	ctx uintptr
	mu  sync.Mutex
	f   func()
}

// NewSlot registers a slot holding f.
func NewSlot(f func()) *Slot {
	s := &Slot{f: f}
	s.ctx = registry.Put(s)
	return s
}

// Context returns the handle to pass to the native layer.
func (s *Slot) Context() uintptr { return s.ctx }

// Function returns the entry point to pass to the native layer.
func (s *Slot) Function() native.Function { return native.WorkFunction }

func (s *Slot) take() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.f
	s.f = nil
	return f
}

func (s *Slot) invoke(uintptr) {
	if f := s.take(); f != nil {
		f()
	}
}

// Close empties the slot and unregisters it. It reports whether the closure
// had already run.
func (s *Slot) Close() bool {
	ran := s.take() == nil
	registry.Delete(s.ctx)
	return ran
}

type applierFunc func(i int)

// Applier registers f for repeated invocation by index. The returned release
// function unregisters it and must be called once the native call that uses
// the context has returned.
func Applier(f func(i int)) (uintptr, native.ApplierFunction, func()) {
	ctx := registry.Put(applierFunc(f))
	return ctx, native.ApplyFunction, func() { registry.Delete(ctx) }
}

// Box registers an arbitrary value and returns its handle. Boxed values are
// only reachable through Unbox and are released with Drop.
func Box(v any) uintptr {
	return registry.Put(v)
}

// Unbox returns the value registered under ctx without releasing it.
func Unbox(ctx uintptr) (any, bool) {
	return registry.Load(ctx)
}

// Drop releases a context that will never be invoked.
func Drop(ctx uintptr) {
	registry.Delete(ctx)
}

// Outstanding reports how many contexts are still registered.
func Outstanding() int {
	return registry.Len()
}
