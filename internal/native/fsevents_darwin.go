//go:build darwin && cgo

package native

/*
#cgo LDFLAGS: -framework CoreServices -framework CoreFoundation
#include <CoreServices/CoreServices.h>
#include <stdint.h>
#include <stdlib.h>

extern void fsdStream(uintptr_t stream, uintptr_t info, size_t n, char **paths, uint32_t *flags, uint64_t *ids);
extern void fsdContextRetain(uintptr_t info);
extern void fsdContextRelease(uintptr_t info);
extern char *fsdContextDescribe(uintptr_t info);

typedef FSEventStreamCallback fsd_stream_callback_t;

#define FSD_STREAM(o) ((FSEventStreamRef)(void *)(o))

static void fsd_stream_callback(ConstFSEventStreamRef s, void *info, size_t n, void *paths,
		const FSEventStreamEventFlags flags[], const FSEventStreamEventId ids[]) {
	fsdStream((uintptr_t)s, (uintptr_t)info, n, (char **)paths, (uint32_t *)flags, (uint64_t *)ids);
}

static fsd_stream_callback_t fsd_stream_entry(void) { return fsd_stream_callback; }

static const void *fsd_ctx_retain(const void *info) {
	fsdContextRetain((uintptr_t)info);
	return info;
}

static void fsd_ctx_release(const void *info) { fsdContextRelease((uintptr_t)info); }

static CFStringRef fsd_ctx_describe(const void *info) {
	char *s = fsdContextDescribe((uintptr_t)info);
	if (s == NULL) {
		return NULL;
	}
	CFStringRef str = CFStringCreateWithCString(kCFAllocatorDefault, s, kCFStringEncodingUTF8);
	free(s);
	return str;
}

static CFArrayRef fsd_path_array(char **paths, int n) {
	CFMutableArrayRef arr = CFArrayCreateMutable(kCFAllocatorDefault, n, &kCFTypeArrayCallBacks);
	for (int i = 0; i < n; i++) {
		CFStringRef p = CFStringCreateWithCString(kCFAllocatorDefault, paths[i], kCFStringEncodingUTF8);
		if (p == NULL) {
			continue;
		}
		CFArrayAppendValue(arr, p);
		CFRelease(p);
	}
	return arr;
}

static uintptr_t fsd_stream_create(fsd_stream_callback_t cb, long version, uintptr_t info,
		char **paths, int n, uint64_t since, double latency, uint32_t flags) {
	FSEventStreamContext ctx = {version, (void *)info, fsd_ctx_retain, fsd_ctx_release, fsd_ctx_describe};
	CFArrayRef arr = fsd_path_array(paths, n);
	FSEventStreamRef s = FSEventStreamCreate(kCFAllocatorDefault, cb, &ctx, arr, since, latency, flags);
	CFRelease(arr);
	return (uintptr_t)s;
}

static int fsd_stream_start(uintptr_t s) { return FSEventStreamStart(FSD_STREAM(s)); }
static void fsd_stream_stop(uintptr_t s) { FSEventStreamStop(FSD_STREAM(s)); }
static void fsd_stream_flush_sync(uintptr_t s) { FSEventStreamFlushSync(FSD_STREAM(s)); }
static uint64_t fsd_stream_flush_async(uintptr_t s) { return FSEventStreamFlushAsync(FSD_STREAM(s)); }
static void fsd_stream_retain(uintptr_t s) { FSEventStreamRetain(FSD_STREAM(s)); }
static void fsd_stream_release(uintptr_t s) { FSEventStreamRelease(FSD_STREAM(s)); }
static void fsd_stream_invalidate(uintptr_t s) { FSEventStreamInvalidate(FSD_STREAM(s)); }
static void fsd_stream_show(uintptr_t s) { FSEventStreamShow(FSD_STREAM(s)); }

static void fsd_stream_set_queue(uintptr_t s, uintptr_t q) {
	FSEventStreamSetDispatchQueue(FSD_STREAM(s), (dispatch_queue_t)(void *)q);
}

static int fsd_stream_set_exclusions(uintptr_t s, char **paths, int n) {
	CFArrayRef arr = fsd_path_array(paths, n);
	Boolean ok = FSEventStreamSetExclusionPaths(FSD_STREAM(s), arr);
	CFRelease(arr);
	return ok;
}

static uint64_t fsd_stream_latest(uintptr_t s) { return FSEventStreamGetLatestEventId(FSD_STREAM(s)); }
static int32_t fsd_stream_device(uintptr_t s) { return FSEventStreamGetDeviceBeingWatched(FSD_STREAM(s)); }

static char *fsd_stream_describe(uintptr_t s) {
	CFStringRef d = FSEventStreamCopyDescription(FSD_STREAM(s));
	if (d == NULL) {
		return NULL;
	}
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(d), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(max);
	if (buf != NULL && !CFStringGetCString(d, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		buf = NULL;
	}
	CFRelease(d);
	return buf;
}
*/
import "C"

import (
	"unsafe"
)

// StreamFunction is a C FSEventStreamCallback.
type StreamFunction C.fsd_stream_callback_t

// StreamCallback forwards to the handler installed with SetStreamHandler.
var StreamCallback = StreamFunction(C.fsd_stream_entry())

const (
	// Records are always decoded as C strings, so the CF-typed payload
	// options are never passed through.
	createUseCFTypes        = 0x1
	createUseExtendedData   = 0x40
	createUnsupportedLayout = createUseCFTypes | createUseExtendedData
)

// cStrings copies paths into a malloc'd char* array. The returned function
// frees it.
func cStrings(paths []string) (**C.char, C.int, func()) {
	if len(paths) == 0 {
		return nil, 0, func() {}
	}
	arr := (**C.char)(C.malloc(C.size_t(len(paths)) * C.size_t(unsafe.Sizeof((*C.char)(nil)))))
	items := unsafe.Slice(arr, len(paths))
	for i, p := range paths {
		items[i] = C.CString(p)
	}
	return arr, C.int(len(paths)), func() {
		for _, item := range items {
			C.free(unsafe.Pointer(item))
		}
		C.free(unsafe.Pointer(arr))
	}
}

// StreamCreate creates a stopped event stream over paths. The context's info
// handle is retained for the stream's lifetime.
func StreamCreate(fn StreamFunction, ctx StreamContext, paths []string, since uint64, latency float64, flags uint32) Object {
	cPaths, n, free := cStrings(paths)
	defer free()
	return Object(C.fsd_stream_create(C.fsd_stream_callback_t(fn), C.long(ctx.Version), C.uintptr_t(ctx.Info),
		cPaths, n, C.uint64_t(since), C.double(latency), C.uint32_t(flags&^createUnsupportedLayout)))
}

// StreamRetain increments the stream's reference count.
func StreamRetain(s Object) { C.fsd_stream_retain(obj(s)) }

// StreamRelease decrements the stream's reference count.
func StreamRelease(s Object) { C.fsd_stream_release(obj(s)) }

// StreamSetDispatchQueue schedules delivery on q, or unschedules for the null
// handle.
func StreamSetDispatchQueue(s, q Object) { C.fsd_stream_set_queue(obj(s), obj(q)) }

// StreamSetExclusionPaths replaces the excluded directories.
func StreamSetExclusionPaths(s Object, paths []string) bool {
	cPaths, n, free := cStrings(paths)
	defer free()
	return C.fsd_stream_set_exclusions(obj(s), cPaths, n) != 0
}

// StreamStart begins delivery.
func StreamStart(s Object) bool { return C.fsd_stream_start(obj(s)) != 0 }

// StreamStop halts delivery.
func StreamStop(s Object) { C.fsd_stream_stop(obj(s)) }

// StreamInvalidate unschedules the stream from its queue.
func StreamInvalidate(s Object) { C.fsd_stream_invalidate(obj(s)) }

// StreamFlushSync delivers buffered events and waits for the callback.
func StreamFlushSync(s Object) { C.fsd_stream_flush_sync(obj(s)) }

// StreamFlushAsync delivers buffered events without waiting.
func StreamFlushAsync(s Object) uint64 { return uint64(C.fsd_stream_flush_async(obj(s))) }

// StreamLatestEventID returns the id of the last event delivered.
func StreamLatestEventID(s Object) uint64 { return uint64(C.fsd_stream_latest(obj(s))) }

// StreamDeviceBeingWatched returns the device a per-device stream watches.
func StreamDeviceBeingWatched(s Object) int32 { return int32(C.fsd_stream_device(obj(s))) }

// StreamDescription renders the stream's configuration and context.
func StreamDescription(s Object) string {
	d := C.fsd_stream_describe(obj(s))
	if d == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(d))
	return C.GoString(d)
}

// StreamShow writes the stream description to stderr.
func StreamShow(s Object) { C.fsd_stream_show(obj(s)) }
