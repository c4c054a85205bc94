//go:build darwin && cgo

package native

/*
#include <dispatch/dispatch.h>
#include <stdint.h>
#include <stdlib.h>

extern void fsdWork(void *ctx);
extern void fsdApply(void *ctx, size_t i);

typedef void (*fsd_applier_t)(void *, size_t);

#define FSD_OBJ(o) ((struct dispatch_object_s *)(void *)(o))
#define FSD_QUEUE(o) ((dispatch_queue_t)(void *)(o))
#define FSD_GROUP(o) ((dispatch_group_t)(void *)(o))
#define FSD_SEMA(o) ((dispatch_semaphore_t)(void *)(o))

static dispatch_time_t fsd_deadline(uint64_t delta) {
	if (delta == DISPATCH_TIME_FOREVER) {
		return DISPATCH_TIME_FOREVER;
	}
	return dispatch_time(DISPATCH_TIME_NOW, (int64_t)delta);
}

static void fsd_retain(uintptr_t o) { dispatch_retain(FSD_OBJ(o)); }
static void fsd_release(uintptr_t o) { dispatch_release(FSD_OBJ(o)); }
static void fsd_suspend(uintptr_t o) { dispatch_suspend(FSD_OBJ(o)); }
static void fsd_resume(uintptr_t o) { dispatch_resume(FSD_OBJ(o)); }

static uintptr_t fsd_main_queue(void) { return (uintptr_t)dispatch_get_main_queue(); }
static uintptr_t fsd_global_queue(long priority) { return (uintptr_t)dispatch_get_global_queue(priority, 0); }

static uintptr_t fsd_queue_create(const char *label, int concurrent) {
	return (uintptr_t)dispatch_queue_create(label, concurrent ? DISPATCH_QUEUE_CONCURRENT : DISPATCH_QUEUE_SERIAL);
}

static const char *fsd_queue_label(uintptr_t q) { return dispatch_queue_get_label(FSD_QUEUE(q)); }

static void fsd_sync_f(uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_sync_f(FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_async_f(uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_async_f(FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_async_and_wait_f(uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_async_and_wait_f(FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_barrier_async_f(uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_barrier_async_f(FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_barrier_sync_f(uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_barrier_sync_f(FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_after_f(uint64_t delta, uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_after_f(fsd_deadline(delta), FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_apply_f(size_t n, uintptr_t q, uintptr_t ctx, fsd_applier_t fn) {
	dispatch_apply_f(n, FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_once_f(intptr_t *pred, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_once_f((dispatch_once_t *)pred, (void *)ctx, fn);
}

static uintptr_t fsd_group_create(void) { return (uintptr_t)dispatch_group_create(); }
static void fsd_group_enter(uintptr_t g) { dispatch_group_enter(FSD_GROUP(g)); }
static void fsd_group_leave(uintptr_t g) { dispatch_group_leave(FSD_GROUP(g)); }
static void fsd_group_async_f(uintptr_t g, uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_group_async_f(FSD_GROUP(g), FSD_QUEUE(q), (void *)ctx, fn);
}
static void fsd_group_notify_f(uintptr_t g, uintptr_t q, uintptr_t ctx, dispatch_function_t fn) {
	dispatch_group_notify_f(FSD_GROUP(g), FSD_QUEUE(q), (void *)ctx, fn);
}
static long fsd_group_wait(uintptr_t g, uint64_t delta) {
	return dispatch_group_wait(FSD_GROUP(g), fsd_deadline(delta));
}

static uintptr_t fsd_semaphore_create(long value) { return (uintptr_t)dispatch_semaphore_create(value); }
static long fsd_semaphore_signal(uintptr_t s) { return dispatch_semaphore_signal(FSD_SEMA(s)); }
static long fsd_semaphore_wait(uintptr_t s, uint64_t delta) {
	return dispatch_semaphore_wait(FSD_SEMA(s), fsd_deadline(delta));
}
*/
import "C"

import (
	"unsafe"
)

// Function is a C work entry point of type dispatch_function_t.
type Function C.dispatch_function_t

// ApplierFunction is a C iteration entry point taking (context, index).
type ApplierFunction C.fsd_applier_t

var (
	// WorkFunction forwards to the handler installed with SetWorkHandler.
	WorkFunction = Function(C.fsdWork)
	// ApplyFunction forwards to the handler installed with SetApplyHandler.
	ApplyFunction = ApplierFunction(C.fsdApply)
)

// Backend names the linked implementation.
const Backend = "darwin"

func obj(o Object) C.uintptr_t { return C.uintptr_t(o) }

// Retain increments the reference count of o.
func Retain(o Object) { C.fsd_retain(obj(o)) }

// Release decrements the reference count of o.
func Release(o Object) { C.fsd_release(obj(o)) }

// Suspend increments the suspension count of o.
func Suspend(o Object) { C.fsd_suspend(obj(o)) }

// Resume decrements the suspension count of o.
func Resume(o Object) { C.fsd_resume(obj(o)) }

// MainQueue returns the queue bound to the main thread.
func MainQueue() Object { return Object(C.fsd_main_queue()) }

// GlobalQueue returns the shared concurrent queue for priority.
func GlobalQueue(priority int) Object { return Object(C.fsd_global_queue(C.long(priority))) }

// QueueCreate creates a serial or concurrent queue.
func QueueCreate(label string, concurrent bool) Object {
	cLabel := C.CString(label)
	defer C.free(unsafe.Pointer(cLabel))
	c := C.int(0)
	if concurrent {
		c = 1
	}
	return Object(C.fsd_queue_create(cLabel, c))
}

// QueueLabel returns the queue's label, or "" when it has none.
func QueueLabel(q Object) string {
	label := C.fsd_queue_label(obj(q))
	if label == nil {
		return ""
	}
	return C.GoString(label)
}

// SyncF runs fn(ctx) on q and waits for it.
func SyncF(q Object, ctx uintptr, fn Function) {
	C.fsd_sync_f(obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// AsyncAndWaitF submits fn(ctx) asynchronously and waits for it.
func AsyncAndWaitF(q Object, ctx uintptr, fn Function) {
	C.fsd_async_and_wait_f(obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// AsyncF submits fn(ctx) and returns immediately.
func AsyncF(q Object, ctx uintptr, fn Function) {
	C.fsd_async_f(obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// BarrierAsyncF submits fn(ctx) as a barrier and returns immediately.
func BarrierAsyncF(q Object, ctx uintptr, fn Function) {
	C.fsd_barrier_async_f(obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// BarrierSyncF runs fn(ctx) as a barrier and waits for it.
func BarrierSyncF(q Object, ctx uintptr, fn Function) {
	C.fsd_barrier_sync_f(obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// AfterF submits fn(ctx) to q once when has elapsed.
func AfterF(when Timeout, q Object, ctx uintptr, fn Function) {
	C.fsd_after_f(C.uint64_t(when), obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// ApplyF calls fn(ctx, i) for every i in [0, n) and waits for all of them.
func ApplyF(n int, q Object, ctx uintptr, fn ApplierFunction) {
	C.fsd_apply_f(C.size_t(n), obj(q), C.uintptr_t(ctx), C.fsd_applier_t(fn))
}

// OnceF runs fn(ctx) the first time it is called with pred.
func OnceF(pred *int64, ctx uintptr, fn Function) {
	C.fsd_once_f((*C.intptr_t)(unsafe.Pointer(pred)), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// GroupCreate creates an empty group.
func GroupCreate() Object { return Object(C.fsd_group_create()) }

// GroupEnter registers one unit of outstanding work.
func GroupEnter(g Object) { C.fsd_group_enter(obj(g)) }

// GroupLeave completes one unit of outstanding work.
func GroupLeave(g Object) { C.fsd_group_leave(obj(g)) }

// GroupAsyncF submits fn(ctx) to q as a unit of work tracked by g.
func GroupAsyncF(g, q Object, ctx uintptr, fn Function) {
	C.fsd_group_async_f(obj(g), obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// GroupNotifyF submits fn(ctx) to q once g has no outstanding work.
func GroupNotifyF(g, q Object, ctx uintptr, fn Function) {
	C.fsd_group_notify_f(obj(g), obj(q), C.uintptr_t(ctx), C.dispatch_function_t(fn))
}

// GroupWait blocks until g drains or timeout elapses. It reports whether the
// group drained.
func GroupWait(g Object, timeout Timeout) bool {
	return C.fsd_group_wait(obj(g), C.uint64_t(timeout)) == 0
}

// SemaphoreCreate creates a counting semaphore.
func SemaphoreCreate(value int64) Object { return Object(C.fsd_semaphore_create(C.long(value))) }

// SemaphoreSignal increments the semaphore and reports whether a waiter woke.
func SemaphoreSignal(s Object) bool { return C.fsd_semaphore_signal(obj(s)) != 0 }

// SemaphoreWait decrements the semaphore, blocking while it is negative. It
// reports false if timeout elapsed first.
func SemaphoreWait(s Object, timeout Timeout) bool {
	return C.fsd_semaphore_wait(obj(s), C.uint64_t(timeout)) == 0
}
