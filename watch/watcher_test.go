package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/fsdispatch/config"
	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/fsevents"
	"github.com/grovetools/fsdispatch/testutil"
	"github.com/moby/patternmatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcherFiltersIgnoredPaths(t *testing.T) {
	dir := testutil.WatchDir(t)
	w := newWatcher(t, Options{
		Paths:  []string{dir},
		Flags:  fsevents.CreateFileEvents,
		Ignore: []string{"*.tmp", "build"},
		Queue:  QueueOptions{Label: "com.grovetools.test.watch", Attr: dispatch.Serial},
		Buffer: 16,
	})
	assert.Equal(t, "com.grovetools.test.watch", w.QueueLabel())
	assert.Equal(t, []string{dir}, w.Roots())

	require.NoError(t, os.Mkdir(filepath.Join(dir, "build"), 0o755))
	testutil.WriteFile(t, filepath.Join(dir, "build", "out.o"), "x")
	testutil.WriteFile(t, filepath.Join(dir, "scratch.tmp"), "x")
	keep := filepath.Join(dir, "keep.txt")
	testutil.WriteFile(t, keep, "x")

	var seen []fsevents.Record
	testutil.Eventually(t, 10*time.Second, func() bool {
		for {
			select {
			case b := <-w.Batches():
				seen = append(seen, b.Records...)
			default:
				for _, rec := range seen {
					if rec.Path == keep {
						return true
					}
				}
				return false
			}
		}
	})

	for _, rec := range seen {
		rel, err := filepath.Rel(dir, rec.Path)
		require.NoError(t, err)
		assert.NotEqual(t, "scratch.tmp", rel)
		assert.NotContains(t, rel, "build", "records below an ignored directory are dropped")
	}
}

func TestWatcherClose(t *testing.T) {
	dir := testutil.WatchDir(t)
	w, err := New(Options{
		Paths: []string{dir},
		Queue: QueueOptions{Label: "com.grovetools.test.close", Attr: dispatch.Serial},
	})
	require.NoError(t, err)

	require.NoError(t, w.Flush())
	assert.NotEmpty(t, w.String())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Batches()
	assert.False(t, ok, "the batch channel is closed")

	err = w.Flush()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))
}

func TestWatcherCloseUnblocksPendingDelivery(t *testing.T) {
	dir := testutil.WatchDir(t)
	w, err := New(Options{
		Paths: []string{dir},
		Flags: fsevents.CreateFileEvents,
		Queue: QueueOptions{Global: true, Priority: dispatch.PriorityDefault},
	})
	require.NoError(t, err)

	// Nobody reads, so the callback blocks on the unbuffered channel.
	testutil.WriteFile(t, filepath.Join(dir, "a"), "x")
	time.Sleep(200 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = w.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = New(Options{Paths: []string{t.TempDir()}, Ignore: []string{"[bad"}})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = New(Options{Paths: []string{t.TempDir()}, Queue: QueueOptions{Label: "a\x00b"}})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestFilter(t *testing.T) {
	pm, err := patternmatcher.New([]string{"node_modules", "*.log", "!keep.log"})
	require.NoError(t, err)
	w := &Watcher{
		opts:   Options{Ignore: []string{"node_modules", "*.log", "!keep.log"}},
		roots:  []string{"/src/app"},
		ignore: pm,
	}

	b := w.filter([]fsevents.Record{
		{Path: "/src/app/main.go", Flags: fsevents.EventItemModified, ID: 1},
		{Path: "/src/app/node_modules/x/index.js", Flags: fsevents.EventItemCreated, ID: 2},
		{Path: "/src/app/debug.log", Flags: fsevents.EventItemModified, ID: 3},
		{Path: "/src/app/keep.log", Flags: fsevents.EventItemModified, ID: 4},
		{Path: "/src/app/node_modules", Flags: fsevents.EventMustScanSubDirs, ID: 5},
	})

	ids := make([]fsevents.EventID, 0, len(b.Records))
	for _, rec := range b.Records {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []fsevents.EventID{1, 4, 5}, ids)
	assert.True(t, b.Rescan)
}

func TestRelative(t *testing.T) {
	w := &Watcher{roots: []string{"/a", "/b/c"}}
	assert.Equal(t, "x/y", w.relative("/a/x/y"))
	assert.Equal(t, "z", w.relative("/b/c/z"))
	assert.Equal(t, "/elsewhere/f", w.relative("/elsewhere/f"))
	assert.Equal(t, "/b/cd", w.relative("/b/cd"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Watch: config.WatchConfig{
			Paths:   []string{"/srv"},
			Latency: "250ms",
			Since:   "1234",
			Flags:   []string{"file_events", "watch_root"},
			Exclude: []string{"/srv/tmp"},
			Ignore:  []string{"*.swp"},
		},
		Queue: config.QueueConfig{Label: "com.example", Attr: "concurrent"},
	}
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv"}, opts.Paths)
	assert.Equal(t, 250*time.Millisecond, opts.Latency)
	assert.Equal(t, fsevents.Since(1234), opts.Since)
	assert.Equal(t, fsevents.CreateFileEvents|fsevents.CreateWatchRoot, opts.Flags)
	assert.Equal(t, dispatch.Concurrent, opts.Queue.Attr)
	assert.False(t, opts.Queue.Global)

	cfg.Watch.Since = "start"
	cfg.Queue.Priority = "background"
	opts, err = OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, fsevents.SinceStartOfTime, opts.Since)
	assert.True(t, opts.Queue.Global)
	assert.Equal(t, dispatch.PriorityBackground, opts.Queue.Priority)

	cfg.Watch.Flags = []string{"recursive"}
	_, err = OptionsFromConfig(cfg)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
