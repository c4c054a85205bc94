// Package watch owns a dispatch queue and an event stream and turns the
// stream's callbacks into a channel of filtered batches.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/fsdispatch/config"
	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/fsevents"
	"github.com/grovetools/fsdispatch/logging"
	"github.com/grovetools/fsdispatch/util/pathutil"
	"github.com/moby/patternmatcher"
)

var log = logging.NewLogger("watch")

// QueueOptions selects the queue callbacks run on. When Global is set the
// shared queue of Priority is used and Label and Attr are ignored.
type QueueOptions struct {
	Label    string
	Attr     dispatch.Attr
	Global   bool
	Priority dispatch.Priority
}

// Options configure a Watcher.
type Options struct {
	Paths   []string
	Since   fsevents.PointInTime
	Latency time.Duration
	Flags   fsevents.CreateFlags
	// Exclude is handed to the stream; at most 8 directories.
	Exclude []string
	// Ignore holds .dockerignore-style patterns matched against paths
	// relative to the watched root that contains them.
	Ignore []string
	Queue  QueueOptions
	// Buffer is the capacity of the batch channel.
	Buffer int
}

// OptionsFromConfig converts the watch and queue sections of cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	latency, err := cfg.Watch.LatencyDuration()
	if err != nil {
		return Options{}, err
	}
	since := fsevents.SinceNow
	if strings.EqualFold(cfg.Watch.Since, "start") {
		since = fsevents.SinceStartOfTime
	} else if id, ok, err := cfg.Watch.SinceCursor(); err != nil {
		return Options{}, err
	} else if ok {
		since = fsevents.Since(fsevents.EventID(id))
	}
	flags, err := fsevents.ParseCreateFlags(strings.Join(cfg.Watch.Flags, ","))
	if err != nil {
		return Options{}, err
	}
	attr, err := dispatch.ParseAttr(cfg.Queue.Attr)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Paths:   cfg.Watch.Paths,
		Since:   since,
		Latency: latency,
		Flags:   flags,
		Exclude: cfg.Watch.Exclude,
		Ignore:  cfg.Watch.Ignore,
		Queue:   QueueOptions{Label: cfg.Queue.Label, Attr: attr},
	}
	if cfg.Queue.Priority != "" {
		p, err := dispatch.ParsePriority(cfg.Queue.Priority)
		if err != nil {
			return Options{}, err
		}
		opts.Queue.Global = true
		opts.Queue.Priority = p
	}
	return opts, nil
}

// Batch is one callback's worth of records that survived the ignore
// patterns.
type Batch struct {
	Records []fsevents.Record `json:"records"`
	// Rescan is set when any record asks the consumer to rescan a directory.
	Rescan bool `json:"rescan,omitempty"`
}

// Watcher delivers filtered batches from one event stream.
type Watcher struct {
	opts    Options
	roots   []string
	queue   *dispatch.Queue
	stream  *fsevents.Stream
	batches chan Batch
	done    chan struct{}

	// inflight counts callbacks that may still send on batches.
	inflight *dispatch.Group

	matchMu sync.Mutex
	ignore  *patternmatcher.PatternMatcher

	mu     sync.Mutex
	closed bool

	// lifecycle keeps Close from tearing the stream down under Flush.
	lifecycle sync.RWMutex
}

// New creates the queue and stream and starts delivery.
func New(opts Options) (*Watcher, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.InvalidInput("paths", "at least one path is required")
	}
	roots := make([]string, 0, len(opts.Paths))
	for _, p := range opts.Paths {
		expanded, err := pathutil.Expand(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid watch path").WithDetail("path", p)
		}
		root, err := pathutil.CanonicalPath(expanded)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid watch path").WithDetail("path", p)
		}
		roots = append(roots, root)
	}

	ignore, err := patternmatcher.New(opts.Ignore)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid ignore pattern").
			WithDetail("patterns", opts.Ignore)
	}

	w := &Watcher{
		opts:    opts,
		roots:   roots,
		batches: make(chan Batch, opts.Buffer),
		done:    make(chan struct{}),
		ignore:  ignore,
	}
	if w.inflight, err = dispatch.NewGroup(); err != nil {
		return nil, err
	}
	if err := w.open(); err != nil {
		w.inflight.Release()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) open() (err error) {
	if w.opts.Queue.Global {
		w.queue, err = dispatch.Global(w.opts.Queue.Priority)
	} else {
		w.queue, err = dispatch.Create(w.opts.Queue.Label, w.opts.Queue.Attr)
	}
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("watch %s", strings.Join(w.roots, ","))
	ctx := fsevents.NewContextWithCallbacks(0, nil, nil, nil,
		func([]uintptr) string { return desc })

	w.stream, err = fsevents.NewStream(w.roots, w.opts.Since, w.opts.Latency, w.opts.Flags, w.deliver, ctx)
	if err != nil {
		w.queue.Release()
		return err
	}

	fail := func(err error) error {
		w.stream.Release()
		w.queue.Release()
		return err
	}
	if len(w.opts.Exclude) > 0 {
		exclude, err := pathutil.ExpandAll(w.opts.Exclude)
		if err != nil {
			return fail(errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid exclude path"))
		}
		if err := w.stream.ExcludePaths(exclude); err != nil {
			return fail(err)
		}
	}
	if err := w.stream.SetDispatchQueue(w.queue); err != nil {
		return fail(err)
	}
	if err := w.stream.Start(); err != nil {
		return fail(err)
	}

	log.WithField("roots", w.roots).
		WithField("queue", w.queue.Label()).
		WithField("latency", w.opts.Latency).
		Debug("Watcher started")
	return nil
}

// deliver runs on the watcher's queue.
func (w *Watcher) deliver(_ []uintptr, n int, paths []string, flags []fsevents.EventFlags, ids []fsevents.EventID) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	guard := w.inflight.Enter()
	w.mu.Unlock()
	defer guard.Leave()

	batch := w.filter(fsevents.Records(paths, flags, ids))
	if len(batch.Records) == 0 {
		log.WithField("records", n).Debug("Batch fully ignored")
		return
	}

	select {
	case w.batches <- batch:
	case <-w.done:
	}
}

// filter drops ignored item records. Stream-level records such as rescans,
// root changes and history markers always pass.
func (w *Watcher) filter(records []fsevents.Record) Batch {
	var b Batch
	for _, rec := range records {
		if rec.Flags.NeedsRescan() {
			b.Rescan = true
		}
		if !w.streamLevel(rec.Flags) && w.ignored(rec.Path) {
			continue
		}
		b.Records = append(b.Records, rec)
	}
	return b
}

func (w *Watcher) streamLevel(f fsevents.EventFlags) bool {
	const mask = fsevents.EventMustScanSubDirs | fsevents.EventUserDropped | fsevents.EventKernelDropped |
		fsevents.EventIDsWrapped | fsevents.EventHistoryDone | fsevents.EventRootChanged |
		fsevents.EventMount | fsevents.EventUnmount
	return f&mask != 0
}

func (w *Watcher) ignored(path string) bool {
	if len(w.opts.Ignore) == 0 {
		return false
	}
	rel := w.relative(path)

	w.matchMu.Lock()
	defer w.matchMu.Unlock()
	matched, err := w.ignore.MatchesOrParentMatches(rel)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Ignore pattern failed")
		return false
	}
	return matched
}

// relative returns path relative to the watched root containing it, or the
// path itself when no root contains it.
func (w *Watcher) relative(path string) string {
	for _, root := range w.roots {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// Batches returns the channel batches are delivered on. It is closed by
// Close.
func (w *Watcher) Batches() <-chan Batch { return w.batches }

// Roots returns the resolved absolute paths being watched.
func (w *Watcher) Roots() []string { return w.roots }

// QueueLabel returns the label of the queue callbacks run on.
func (w *Watcher) QueueLabel() string { return w.queue.Label() }

// Flush delivers anything the stream is holding back and waits until the
// watcher's callback has seen it. The batch itself may still be waiting in
// the channel.
func (w *Watcher) Flush() error {
	w.lifecycle.RLock()
	defer w.lifecycle.RUnlock()

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return errors.InvalidState("flush", "closed")
	}
	return w.stream.Flush()
}

// LatestEventID returns the id of the last event the stream delivered.
func (w *Watcher) LatestEventID() fsevents.EventID {
	return w.stream.LatestEventID()
}

// String returns the stream's description.
func (w *Watcher) String() string {
	return w.stream.String()
}

// Close stops the stream, waits for in-flight callbacks and closes the
// batch channel. Later calls do nothing.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	w.stream.Stop()
	if err := w.stream.Invalidate(); err != nil {
		log.WithError(err).Debug("Failed to invalidate stream")
	}
	w.inflight.Wait()

	w.stream.Release()
	w.queue.Release()
	w.inflight.Release()
	close(w.batches)

	log.WithField("roots", w.roots).Debug("Watcher closed")
	return nil
}
