//go:build !darwin || !cgo

package native

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/fsdispatch/internal/handle"
	"github.com/grovetools/fsdispatch/logging"
)

// StreamFunction is a stream callback entry point.
type StreamFunction func(stream Object, info uintptr, n int, paths []string, flags []uint32, ids []uint64)

// StreamCallback forwards to the handler installed with SetStreamHandler.
var StreamCallback StreamFunction = callStream

const (
	createWatchRoot = 0x4

	eventMustScanSubDirs = 0x1
	eventUserDropped     = 0x2
	eventHistoryDone     = 0x10
	eventRootChanged     = 0x20
	eventItemCreated     = 0x100
	eventItemRemoved     = 0x200
	eventItemInodeMeta   = 0x400
	eventItemRenamed     = 0x800
	eventItemModified    = 0x1000
	eventItemIsFile      = 0x10000
	eventItemIsDir       = 0x20000
	eventItemIsSymlink   = 0x40000

	sinceNowSentinel = ^uint64(0)
)

var (
	streams = handle.NewRegistry[*stream]()
	// Event ids are shared by every stream in the process.
	lastEventID atomic.Uint64
)

type pendingEvent struct {
	path  string
	flags uint32
	id    uint64
}

type stream struct {
	refs    atomic.Int64
	id      Object
	fn      StreamFunction
	info    uintptr
	version int
	paths   []string
	since   uint64
	latency time.Duration
	flags   uint32

	mu          sync.Mutex
	queue       Object
	excludes    []string
	running     bool
	invalidated bool
	watcher     *fsnotify.Watcher
	done        chan struct{}
	dirs        map[string]bool
	pending     []pendingEvent
	timer       *time.Timer
	latest      uint64
}

func streamOf(o Object) *stream {
	s, ok := streams.Load(uintptr(o))
	if !ok {
		panic(fmt.Sprintf("native: use of invalid event stream %#x", uintptr(o)))
	}
	return s
}

// StreamCreate creates a stopped event stream over paths. The context's info
// handle is retained for the stream's lifetime.
func StreamCreate(fn StreamFunction, ctx StreamContext, paths []string, since uint64, latency float64, flags uint32) Object {
	if fn == nil {
		return 0
	}
	s := &stream{
		fn:      fn,
		info:    ctx.Info,
		version: ctx.Version,
		paths:   make([]string, 0, len(paths)),
		since:   since,
		latency: time.Duration(latency * float64(time.Second)),
		flags:   flags,
	}
	for _, p := range paths {
		s.paths = append(s.paths, filepath.Clean(p))
	}
	if since != sinceNowSentinel {
		s.latest = since
		raiseEventID(since)
	}
	s.refs.Store(1)
	s.id = Object(streams.Put(s))
	contextRetain(s.info)
	return s.id
}

// raiseEventID moves the process-wide id counter to at least floor, so every
// id handed out afterwards is greater than a resumed stream's cursor.
func raiseEventID(floor uint64) {
	for {
		cur := lastEventID.Load()
		if cur >= floor || lastEventID.CompareAndSwap(cur, floor) {
			return
		}
	}
}

// StreamRetain increments the stream's reference count.
func StreamRetain(o Object) { streamOf(o).refs.Add(1) }

// StreamRelease decrements the stream's reference count, deallocating it at
// zero.
func StreamRelease(o Object) {
	s := streamOf(o)
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.mu.Lock()
		s.stopLocked()
		q := s.queue
		s.queue = 0
		s.mu.Unlock()
		if q != 0 {
			Release(q)
		}
		streams.Delete(uintptr(o))
		contextRelease(s.info)
	case n < 0:
		panic(fmt.Sprintf("native: over-release of event stream %#x", uintptr(o)))
	}
}

// StreamSetDispatchQueue schedules delivery on q, or unschedules for the null
// handle. The stream retains the queue.
func StreamSetDispatchQueue(o, q Object) {
	s := streamOf(o)
	if q != 0 {
		Retain(q)
	}
	s.mu.Lock()
	old := s.queue
	s.queue = q
	s.mu.Unlock()
	if old != 0 {
		Release(old)
	}
}

// StreamSetExclusionPaths replaces the excluded directories. It rejects more
// than MaxExclusionPaths entries.
func StreamSetExclusionPaths(o Object, paths []string) bool {
	if len(paths) > MaxExclusionPaths {
		return false
	}
	s := streamOf(o)
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, filepath.Clean(p))
	}
	s.mu.Lock()
	s.excludes = cleaned
	s.mu.Unlock()
	return true
}

// StreamStart begins delivery. It fails when no queue is scheduled, the
// stream was invalidated, or the watcher cannot be created.
func StreamStart(o Object) bool {
	s := streamOf(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true
	}
	if s.queue == 0 || s.invalidated {
		return false
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.NewLogger("native").WithError(err).Debug("Failed to create watcher")
		return false
	}
	s.watcher = w
	s.dirs = make(map[string]bool)
	for _, root := range s.paths {
		s.addLocked(root)
	}
	s.done = make(chan struct{})
	s.running = true
	go s.loop(w, s.done)

	if s.since != 0 && s.since != sinceNowSentinel && len(s.paths) > 0 {
		s.appendLocked(s.paths[0], eventHistoryDone)
	}
	return true
}

// addLocked watches path and, for directories, everything below it.
func (s *stream) addLocked(path string) {
	log := logging.NewLogger("native")
	info, err := os.Lstat(path)
	if err != nil {
		log.WithField("path", path).Debug("Skipping missing watch path")
		return
	}
	if !info.IsDir() {
		if err := s.watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Debug("Failed to watch file")
		}
		return
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if s.excludedLocked(p) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(p); err != nil {
			log.WithError(err).WithField("path", p).Debug("Failed to watch directory")
			return nil
		}
		s.dirs[p] = true
		return nil
	})
}

func (s *stream) excludedLocked(path string) bool {
	for _, ex := range s.excludes {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *stream) isRoot(path string) bool {
	for _, root := range s.paths {
		if root == path {
			return true
		}
	}
	return false
}

func (s *stream) loop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.mu.Lock()
				for _, root := range s.paths {
					s.appendLocked(root, eventMustScanSubDirs|eventUserDropped)
				}
				s.mu.Unlock()
				continue
			}
			logging.NewLogger("native").WithError(err).Debug("Watcher error")
		}
	}
}

func (s *stream) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.excludedLocked(path) {
		return
	}

	var flags uint32
	switch {
	case ev.Has(fsnotify.Create):
		flags |= eventItemCreated
	case ev.Has(fsnotify.Remove):
		flags |= eventItemRemoved
	case ev.Has(fsnotify.Rename):
		flags |= eventItemRenamed
	case ev.Has(fsnotify.Write):
		flags |= eventItemModified
	case ev.Has(fsnotify.Chmod):
		flags |= eventItemInodeMeta
	}

	gone := ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	if info, err := os.Lstat(path); err == nil && !gone {
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			flags |= eventItemIsSymlink
		case info.IsDir():
			flags |= eventItemIsDir
			if ev.Has(fsnotify.Create) && !s.dirs[path] {
				s.addLocked(path)
			}
		default:
			flags |= eventItemIsFile
		}
	} else if s.dirs[path] {
		flags |= eventItemIsDir
		if gone {
			delete(s.dirs, path)
		}
	} else {
		flags |= eventItemIsFile
	}

	s.appendLocked(path, flags)
	if gone && s.flags&createWatchRoot != 0 && s.isRoot(path) {
		s.appendLocked(path, eventRootChanged)
	}
}

// appendLocked records one event and arranges for its delivery: at once for a
// zero latency, otherwise when the latency window closes.
func (s *stream) appendLocked(path string, flags uint32) {
	s.pending = append(s.pending, pendingEvent{path: path, flags: flags, id: lastEventID.Add(1)})
	if s.latency <= 0 {
		s.deliver(s.takeLocked(), s.queue, false)
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.latency, s.flushTimer)
	}
}

func (s *stream) flushTimer() {
	s.mu.Lock()
	s.timer = nil
	if !s.running {
		s.mu.Unlock()
		return
	}
	batch, q := s.takeLocked(), s.queue
	s.mu.Unlock()
	s.deliver(batch, q, false)
}

func (s *stream) takeLocked() []pendingEvent {
	batch := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return batch
}

// deliver hands one batch to the callback on q. With wait set it returns only
// after the callback and everything queued before it have run.
func (s *stream) deliver(batch []pendingEvent, q Object, wait bool) {
	if q == 0 || (len(batch) == 0 && !wait) {
		return
	}
	target := queueOf(q)
	if len(batch) == 0 {
		target.sync(func() {}, false)
		return
	}

	n := len(batch)
	paths := make([]string, n)
	flags := make([]uint32, n)
	ids := make([]uint64, n)
	for i, ev := range batch {
		paths[i], flags[i], ids[i] = ev.path, ev.flags, ev.id
	}

	s.refs.Add(1)
	run := func() {
		defer StreamRelease(s.id)
		s.mu.Lock()
		if last := ids[n-1]; last > s.latest {
			s.latest = last
		}
		s.mu.Unlock()
		s.fn(s.id, s.info, n, paths, flags, ids)
	}
	if wait {
		target.sync(run, false)
		return
	}
	target.enqueue(workItem{run: run})
}

func (s *stream) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	_ = s.watcher.Close()
	s.watcher = nil
	s.takeLocked()
}

// StreamStop halts delivery. Events not yet delivered are discarded.
func StreamStop(o Object) {
	s := streamOf(o)
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

// StreamInvalidate stops the stream and unschedules it from its queue. An
// invalidated stream cannot be started again.
func StreamInvalidate(o Object) {
	s := streamOf(o)
	s.mu.Lock()
	s.stopLocked()
	s.invalidated = true
	q := s.queue
	s.queue = 0
	s.mu.Unlock()
	if q != 0 {
		Release(q)
	}
}

// StreamFlushSync delivers buffered events and waits for the callback.
func StreamFlushSync(o Object) {
	s := streamOf(o)
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	batch, q := s.takeLocked(), s.queue
	s.mu.Unlock()
	s.deliver(batch, q, true)
}

// StreamFlushAsync delivers buffered events without waiting and returns the
// id of the last event flushed.
func StreamFlushAsync(o Object) uint64 {
	s := streamOf(o)
	s.mu.Lock()
	if !s.running {
		latest := s.latest
		s.mu.Unlock()
		return latest
	}
	batch, q := s.takeLocked(), s.queue
	watermark := s.latest
	if len(batch) > 0 {
		watermark = batch[len(batch)-1].id
	}
	s.mu.Unlock()
	s.deliver(batch, q, false)
	return watermark
}

// StreamLatestEventID returns the id of the last event delivered, or the
// stream's starting point before any delivery.
func StreamLatestEventID(o Object) uint64 {
	s := streamOf(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// StreamDeviceBeingWatched returns the device a per-device stream watches.
// Portable streams are always per-host.
func StreamDeviceBeingWatched(o Object) int32 {
	streamOf(o)
	return 0
}

// StreamDescription renders the stream's configuration and context.
func StreamDescription(o Object) string {
	s := streamOf(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	desc := fmt.Sprintf("FSEventStreamRef @ %#x:\n   allocator = 0x0\n   callback = %p\n   context = {%d, %#x, %q}\n   numPathsToWatch = %d\n",
		uintptr(o), s.fn, s.version, s.info, contextDescribe(s.info), len(s.paths))
	for i, p := range s.paths {
		desc += fmt.Sprintf("   pathsToWatch[%d] = '%s'\n", i, p)
	}
	desc += fmt.Sprintf("   latestEventId = %d\n   latency = %f (seconds)\n   flags = %#08x\n   runLoop = 0x0\n   queue = %#x\n",
		s.latest, s.latency.Seconds(), s.flags, uintptr(s.queue))
	return desc
}

// StreamShow writes the stream description to stderr.
func StreamShow(o Object) {
	fmt.Fprint(os.Stderr, StreamDescription(o))
}
