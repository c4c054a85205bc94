package fsevents

import (
	"testing"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/trampoline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireContractPanic runs f and checks it panics with a NATIVE_CONTRACT error.
func requireContractPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %T is not an error", r)
		assert.True(t, errors.Is(err, errors.ErrCodeNativeContract), "got %v", err)
	}()
	f()
}

// boxInfo registers a stream context the way NewStream does and returns its
// info handle.
func boxInfo(t *testing.T, cb Callback, ctx *Context) uintptr {
	t.Helper()
	h := trampoline.Box(cb)
	info := trampoline.Box(&streamInfo{aux: ctx.mergeCallback(h), ctx: *ctx})
	t.Cleanup(func() {
		trampoline.Drop(h)
		trampoline.Drop(info)
	})
	return info
}

func TestMergeCallback(t *testing.T) {
	ctx := NewContext(7, 8)
	merged := ctx.mergeCallback(3)
	assert.Equal(t, []uintptr{3, 7, 8}, merged)
	assert.Equal(t, []uintptr{7, 8}, ctx.Info)

	assert.Equal(t, []uintptr{5}, NewContext().mergeCallback(5))
}

func TestDeliverPassesAuxAndBatch(t *testing.T) {
	var (
		gotInfo []uintptr
		got     []Record
	)
	cb := Callback(func(info []uintptr, n int, paths []string, flags []EventFlags, ids []EventID) {
		gotInfo = info
		require.Equal(t, n, len(paths))
		got = Records(paths, flags, ids)
	})
	info := boxInfo(t, cb, NewContext(11, 12))

	deliver(0, info, 2,
		[]string{"/tmp/a", "/tmp/b"},
		[]uint32{uint32(EventItemCreated | EventItemIsFile), uint32(EventItemRemoved | EventItemIsDir)},
		[]uint64{100, 101})

	assert.Equal(t, []uintptr{11, 12}, gotInfo)
	assert.Equal(t, []Record{
		{Path: "/tmp/a", Flags: EventItemCreated | EventItemIsFile, ID: 100},
		{Path: "/tmp/b", Flags: EventItemRemoved | EventItemIsDir, ID: 101},
	}, got)
}

func TestDeliverEmptyAux(t *testing.T) {
	var gotInfo []uintptr
	called := false
	info := boxInfo(t, func(info []uintptr, _ int, _ []string, _ []EventFlags, _ []EventID) {
		called = true
		gotInfo = info
	}, NewContext())

	deliver(0, info, 1, []string{"/x"}, []uint32{0}, []uint64{1})
	assert.True(t, called)
	assert.Empty(t, gotInfo)
}

func TestDeliverRejectsMalformedBatches(t *testing.T) {
	info := boxInfo(t, func([]uintptr, int, []string, []EventFlags, []EventID) {
		t.Fatal("callback must not run")
	}, NewContext())

	requireContractPanic(t, func() {
		deliver(0, info, 0, nil, nil, nil)
	})
	requireContractPanic(t, func() {
		deliver(0, info, 2, []string{"/a"}, []uint32{0, 0}, []uint64{1, 2})
	})
	requireContractPanic(t, func() {
		deliver(0, info, 1, []string{"/a"}, []uint32{0}, nil)
	})
}

func TestDeliverRejectsUnknownContext(t *testing.T) {
	requireContractPanic(t, func() {
		deliver(0, ^uintptr(0), 1, []string{"/a"}, []uint32{0}, []uint64{1})
	})

	// A context whose first slot is not a Callback.
	wrong := trampoline.Box("not a callback")
	info := trampoline.Box(&streamInfo{aux: []uintptr{wrong}})
	defer trampoline.Drop(wrong)
	defer trampoline.Drop(info)
	requireContractPanic(t, func() {
		deliver(0, info, 1, []string{"/a"}, []uint32{0}, []uint64{1})
	})
}

func TestContextHooksSeeCallerInfo(t *testing.T) {
	var retained, released [][]uintptr
	ctx := NewContextWithCallbacks(0, []uintptr{21, 22},
		func(info []uintptr) { retained = append(retained, info) },
		func(info []uintptr) { released = append(released, info) },
		func(info []uintptr) string { return "ctx" })

	h := trampoline.Box(Callback(func([]uintptr, int, []string, []EventFlags, []EventID) {}))
	info := trampoline.Box(&streamInfo{aux: ctx.mergeCallback(h), ctx: *ctx})

	retainInfo(info)
	retainInfo(info)
	assert.Equal(t, "ctx", describeInfo(info))
	releaseInfo(info)

	_, ok := trampoline.Unbox(info)
	assert.True(t, ok, "context must survive while references remain")

	releaseInfo(info)
	assert.Equal(t, [][]uintptr{{21, 22}, {21, 22}}, retained)
	assert.Equal(t, [][]uintptr{{21, 22}, {21, 22}}, released)

	_, ok = trampoline.Unbox(info)
	assert.False(t, ok, "final release drops the context")
	_, ok = trampoline.Unbox(h)
	assert.False(t, ok, "final release drops the callback")
}

func TestDescribeWithoutHook(t *testing.T) {
	info := boxInfo(t, func([]uintptr, int, []string, []EventFlags, []EventID) {}, NewContext(1))
	assert.Equal(t, "", describeInfo(info))
}
