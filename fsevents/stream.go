// Package fsevents delivers batches of filesystem change records from a
// native event stream to a Go callback running on a dispatch queue.
//
// A stream moves through these states:
//
//	Created --SetDispatchQueue--> Configured --Start--> Running --Stop--> Configured
//	Created|Configured --ExcludePaths--> (unchanged)
//	Configured --Invalidate--> Invalidated
//
// Operations attempted in the wrong state return an INVALID_STATE error and
// leave the stream untouched. Configuration calls on one stream must not race
// each other.
package fsevents

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
	"github.com/grovetools/fsdispatch/internal/trampoline"
	"github.com/grovetools/fsdispatch/logging"
)

var log = logging.NewLogger("fsevents")

// State is the stream's position in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateRunning
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateInvalidated:
		return "invalidated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stream is one reference to a native file event stream.
type Stream struct {
	obj         native.Object
	queue       *dispatch.Queue
	started     bool
	invalidated bool
	released    atomic.Bool
}

// NewStream creates a stopped stream watching paths. cb runs on the queue
// assigned with SetDispatchQueue and receives ctx.Info with every batch. A nil
// ctx is treated as NewContext(). An empty paths slice is passed through.
func NewStream(paths []string, since PointInTime, latency time.Duration, flags CreateFlags, cb Callback, ctx *Context) (*Stream, error) {
	if cb == nil {
		return nil, errors.InvalidInput("callback", "must not be nil")
	}
	if ctx == nil {
		ctx = NewContext()
	}
	if latency < 0 {
		latency = 0
	}

	cbHandle := trampoline.Box(cb)
	info := trampoline.Box(&streamInfo{aux: ctx.mergeCallback(cbHandle), ctx: *ctx})

	obj := native.StreamCreate(native.StreamCallback,
		native.StreamContext{Version: ctx.Version, Info: info},
		paths, since.cursor(), latency.Seconds(), uint32(flags))
	if obj == 0 {
		trampoline.Drop(cbHandle)
		trampoline.Drop(info)
		return nil, errors.NativeResourceUnavailable("event stream").WithDetail("paths", paths)
	}

	log.WithField("paths", paths).
		WithField("since", since.String()).
		WithField("latency", latency).
		WithField("flags", flags.String()).
		Debug("Created event stream")
	return &Stream{obj: obj}, nil
}

// State reports where the stream is in its lifecycle.
func (s *Stream) State() State {
	switch {
	case s.invalidated:
		return StateInvalidated
	case s.started:
		return StateRunning
	case s.queue != nil:
		return StateConfigured
	}
	return StateCreated
}

// ExcludePaths replaces the set of directories whose events are dropped. It
// is only valid before Start.
func (s *Stream) ExcludePaths(paths []string) error {
	if s.started || s.invalidated {
		return errors.InvalidState("exclude paths", s.State().String())
	}
	if !native.StreamSetExclusionPaths(s.obj, paths) {
		return errors.InvalidInput("exclusion paths",
			fmt.Sprintf("native layer rejected %d paths (at most %d allowed)", len(paths), native.MaxExclusionPaths)).
			WithDetail("paths", paths)
	}
	return nil
}

// SetDispatchQueue assigns the queue the callback runs on. The stream borrows
// q: the caller keeps its reference and must not release it while the stream
// can still deliver. Only valid before Start.
func (s *Stream) SetDispatchQueue(q *dispatch.Queue) error {
	if s.started || s.invalidated {
		return errors.InvalidState("set dispatch queue", s.State().String())
	}
	if q == nil {
		return errors.InvalidInput("dispatch queue", "must not be nil")
	}
	native.StreamSetDispatchQueue(s.obj, q.Native())
	s.queue = q
	return nil
}

// Start begins delivery. A queue must have been assigned.
func (s *Stream) Start() error {
	if s.started || s.invalidated || s.queue == nil {
		return errors.InvalidState("start", s.State().String())
	}
	if !native.StreamStart(s.obj) {
		return errors.NativeResourceUnavailable("event stream start")
	}
	s.started = true
	log.WithField("queue", s.queue.Label()).Debug("Started event stream")
	return nil
}

// Stop halts delivery without destroying the stream. Stopping a stopped
// stream does nothing.
func (s *Stream) Stop() {
	if !s.started {
		return
	}
	native.StreamStop(s.obj)
	s.started = false
	log.Debug("Stopped event stream")
}

// Invalidate unschedules a stopped stream from its queue. An invalidated
// stream cannot be restarted; it can only be released.
func (s *Stream) Invalidate() error {
	if s.started || s.invalidated || s.queue == nil {
		return errors.InvalidState("invalidate", s.State().String())
	}
	native.StreamInvalidate(s.obj)
	s.invalidated = true
	s.queue = nil
	return nil
}

// Flush delivers buffered events and waits until the callback has seen them.
// Only valid while running.
func (s *Stream) Flush() error {
	if !s.started {
		return errors.InvalidState("flush", s.State().String())
	}
	native.StreamFlushSync(s.obj)
	return nil
}

// FlushAsync asks for buffered events to be delivered and returns the id of
// the last one. Only valid while running.
func (s *Stream) FlushAsync() (EventID, error) {
	if !s.started {
		return 0, errors.InvalidState("flush", s.State().String())
	}
	return EventID(native.StreamFlushAsync(s.obj)), nil
}

// LatestEventID returns the id of the last event delivered to the callback.
func (s *Stream) LatestEventID() EventID {
	return EventID(native.StreamLatestEventID(s.obj))
}

// DeviceID returns the device a per-device stream watches, or 0.
func (s *Stream) DeviceID() int32 {
	return native.StreamDeviceBeingWatched(s.obj)
}

// String returns the native description of the stream.
func (s *Stream) String() string {
	return native.StreamDescription(s.obj)
}

// Show writes the native description of the stream to stderr.
func (s *Stream) Show() {
	native.StreamShow(s.obj)
}

// Clone returns a new reference to the same native stream. The clone copies
// the queue and started flag as they are now; clones do not see each other's
// later Start or Stop calls.
func (s *Stream) Clone() *Stream {
	native.StreamRetain(s.obj)
	return &Stream{
		obj:         s.obj,
		queue:       s.queue,
		started:     s.started,
		invalidated: s.invalidated,
	}
}

// Release gives up this reference. It does not stop the stream. Later calls
// on the same value do nothing.
func (s *Stream) Release() {
	if s.released.CompareAndSwap(false, true) {
		native.StreamRelease(s.obj)
	}
}
