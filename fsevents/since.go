package fsevents

import "fmt"

// EventID identifies one event. Ids grow monotonically until a record
// carries EventIDsWrapped.
type EventID uint64

type sinceKind int

const (
	sinceNow sinceKind = iota
	sinceStartOfTime
	sinceEvent
)

// PointInTime selects where a new stream starts reporting from.
type PointInTime struct {
	kind sinceKind
	id   EventID
}

var (
	// SinceNow reports only events that happen after the stream starts.
	SinceNow = PointInTime{kind: sinceNow}
	// SinceStartOfTime asks for all retained history.
	SinceStartOfTime = PointInTime{kind: sinceStartOfTime}
)

// Since resumes after the given event id.
func Since(id EventID) PointInTime {
	return PointInTime{kind: sinceEvent, id: id}
}

// cursor is the value handed to the native create call. Now and start of
// time both encode as zero.
func (p PointInTime) cursor() uint64 {
	if p.kind == sinceEvent {
		return uint64(p.id)
	}
	return 0
}

func (p PointInTime) String() string {
	switch p.kind {
	case sinceNow:
		return "now"
	case sinceStartOfTime:
		return "start of time"
	}
	return fmt.Sprintf("event %d", p.id)
}
