package fsevents

import (
	"testing"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFlagsString(t *testing.T) {
	tests := []struct {
		flags CreateFlags
		want  string
	}{
		{CreateNone, "none"},
		{CreateFileEvents, "file_events"},
		{CreateWatchRoot | CreateFileEvents, "watch_root,file_events"},
		{CreateNoDefer | 0x1000, "no_defer,0x1000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flags.String())
	}
}

func TestParseCreateFlags(t *testing.T) {
	got, err := ParseCreateFlags("file_events, WATCH_ROOT")
	require.NoError(t, err)
	assert.Equal(t, CreateFileEvents|CreateWatchRoot, got)

	got, err = ParseCreateFlags("")
	require.NoError(t, err)
	assert.Equal(t, CreateNone, got)

	got, err = ParseCreateFlags("none")
	require.NoError(t, err)
	assert.Equal(t, CreateNone, got)

	_, err = ParseCreateFlags("file_events,bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestParseCreateFlagsRoundTrip(t *testing.T) {
	for _, name := range CreateFlagNames() {
		f, err := ParseCreateFlags(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, f.String())
	}
}

func TestEventFlagsString(t *testing.T) {
	assert.Equal(t, "None", EventNone.String())
	assert.Equal(t, "ItemCreated|ItemIsFile", (EventItemCreated | EventItemIsFile).String())
	assert.Equal(t, "MustScanSubDirs|0x80000000", (EventMustScanSubDirs | 0x80000000).String())
}

func TestEventFlagsPredicates(t *testing.T) {
	f := EventItemCreated | EventItemModified | EventItemIsFile
	assert.True(t, f.Has(EventItemCreated|EventItemIsFile))
	assert.False(t, f.Has(EventItemCreated|EventItemIsDir))
	assert.False(t, f.NeedsRescan())

	assert.True(t, EventMustScanSubDirs.NeedsRescan())
	assert.True(t, (EventUserDropped | EventMustScanSubDirs).NeedsRescan())
	assert.True(t, EventKernelDropped.NeedsRescan())
}

func TestPointInTime(t *testing.T) {
	assert.Equal(t, uint64(0), SinceNow.cursor())
	assert.Equal(t, uint64(0), SinceStartOfTime.cursor())
	assert.Equal(t, uint64(42), Since(42).cursor())

	assert.Equal(t, "now", SinceNow.String())
	assert.Equal(t, "start of time", SinceStartOfTime.String())
	assert.Equal(t, "event 42", Since(42).String())
}
