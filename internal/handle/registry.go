// Package handle maps opaque pointer-sized handles to Go values.
//
// Go pointers cannot be handed to foreign code that stores them past the
// call, so every value the native layer must later give back is parked in a
// Registry and represented by an integer id. Ids are never reused; zero is
// never issued and stands for "null".
package handle

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is a concurrent id -> value table.
type Registry[T any] struct {
	values *xsync.MapOf[uintptr, T]
	next   atomic.Uintptr
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{values: xsync.NewMapOf[uintptr, T]()}
}

// Put stores v and returns its handle.
func (r *Registry[T]) Put(v T) uintptr {
	h := r.next.Add(1)
	r.values.Store(h, v)
	return h
}

// Load returns the value for h without removing it.
func (r *Registry[T]) Load(h uintptr) (T, bool) {
	return r.values.Load(h)
}

// LoadAndDelete removes h and returns the value it held.
// Exactly one of any number of concurrent callers observes ok == true.
func (r *Registry[T]) LoadAndDelete(h uintptr) (T, bool) {
	return r.values.LoadAndDelete(h)
}

// Delete removes h. Deleting an unknown handle is a no-op.
func (r *Registry[T]) Delete(h uintptr) {
	r.values.Delete(h)
}

// Len reports the number of live handles.
func (r *Registry[T]) Len() int {
	return r.values.Size()
}
