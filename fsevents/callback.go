package fsevents

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
	"github.com/grovetools/fsdispatch/internal/trampoline"
)

// Callback receives one batch of n change records. info is the context's
// auxiliary list; paths, flags and ids are parallel and have length n >= 1.
type Callback func(info []uintptr, n int, paths []string, flags []EventFlags, ids []EventID)

// Record is one entry of a batch.
type Record struct {
	Path  string     `json:"path"`
	Flags EventFlags `json:"flags"`
	ID    EventID    `json:"id"`
}

// Records zips a batch into records.
func Records(paths []string, flags []EventFlags, ids []EventID) []Record {
	records := make([]Record, len(paths))
	for i := range paths {
		records[i] = Record{Path: paths[i], Flags: flags[i], ID: ids[i]}
	}
	return records
}

// streamInfo is what the native stream's context info handle refers to.
type streamInfo struct {
	// aux[0] is the boxed Callback; the rest is the caller's Context.Info.
	aux  []uintptr
	ctx  Context
	refs atomic.Int32
}

func init() {
	native.SetStreamHandler(deliver)
	native.SetContextHandlers(native.ContextHandlers{
		Retain:   retainInfo,
		Release:  releaseInfo,
		Describe: describeInfo,
	})
}

func lookupInfo(info uintptr) *streamInfo {
	v, ok := trampoline.Unbox(info)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("unknown stream context %#x", info)))
	}
	si, ok := v.(*streamInfo)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("stream context %#x holds %T", info, v)))
	}
	return si
}

func retainInfo(info uintptr) {
	si := lookupInfo(info)
	si.refs.Add(1)
	if si.ctx.Retain != nil {
		si.ctx.Retain(si.aux[1:])
	}
}

func releaseInfo(info uintptr) {
	si := lookupInfo(info)
	if si.ctx.Release != nil {
		si.ctx.Release(si.aux[1:])
	}
	if si.refs.Add(-1) == 0 {
		trampoline.Drop(si.aux[0])
		trampoline.Drop(info)
	}
}

func describeInfo(info uintptr) string {
	si := lookupInfo(info)
	if si.ctx.CopyDescription == nil {
		return ""
	}
	return si.ctx.CopyDescription(si.aux[1:])
}

// deliver is the stream trampoline. Malformed batches mean the native layer
// broke its contract, so they panic instead of reaching the callback.
func deliver(_ native.Object, info uintptr, n int, paths []string, flags []uint32, ids []uint64) {
	if n < 1 {
		panic(errors.NativeContract(fmt.Sprintf("batch of %d records", n)))
	}
	if len(paths) != n || len(flags) != n || len(ids) != n {
		panic(errors.NativeContract(fmt.Sprintf("batch length %d with %d paths, %d flags, %d ids",
			n, len(paths), len(flags), len(ids))))
	}

	si := lookupInfo(info)
	if len(si.aux) == 0 {
		panic(errors.NativeContract("stream context has no callback"))
	}
	v, ok := trampoline.Unbox(si.aux[0])
	if !ok {
		panic(errors.NativeContract("stream callback was released"))
	}
	cb, ok := v.(Callback)
	if !ok {
		panic(errors.NativeContract(fmt.Sprintf("stream callback slot holds %T", v)))
	}

	eventFlags := make([]EventFlags, n)
	eventIDs := make([]EventID, n)
	for i := 0; i < n; i++ {
		eventFlags[i] = EventFlags(flags[i])
		eventIDs[i] = EventID(ids[i])
	}
	cb(slices.Clone(si.aux[1:]), n, paths, eventFlags, eventIDs)
}
