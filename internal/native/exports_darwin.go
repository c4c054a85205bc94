//go:build darwin && cgo

package native

/*
#include <stddef.h>
#include <stdint.h>
*/
import "C"

import (
	"unsafe"
)

//export fsdWork
func fsdWork(ctx unsafe.Pointer) {
	callWork(uintptr(ctx))
}

//export fsdApply
func fsdApply(ctx unsafe.Pointer, i C.size_t) {
	callApply(uintptr(ctx), int(i))
}

//export fsdStream
func fsdStream(stream, info C.uintptr_t, n C.size_t, paths **C.char, flags *C.uint32_t, ids *C.uint64_t) {
	count := int(n)
	cPaths := unsafe.Slice(paths, count)
	cFlags := unsafe.Slice(flags, count)
	cIDs := unsafe.Slice(ids, count)

	goPaths := make([]string, count)
	goFlags := make([]uint32, count)
	goIDs := make([]uint64, count)
	for i := 0; i < count; i++ {
		goPaths[i] = C.GoString(cPaths[i])
		goFlags[i] = uint32(cFlags[i])
		goIDs[i] = uint64(cIDs[i])
	}
	callStream(Object(stream), uintptr(info), count, goPaths, goFlags, goIDs)
}

//export fsdContextRetain
func fsdContextRetain(info C.uintptr_t) {
	contextRetain(uintptr(info))
}

//export fsdContextRelease
func fsdContextRelease(info C.uintptr_t) {
	contextRelease(uintptr(info))
}

//export fsdContextDescribe
func fsdContextDescribe(info C.uintptr_t) *C.char {
	desc := contextDescribe(uintptr(info))
	if desc == "" {
		return nil
	}
	return C.CString(desc)
}
