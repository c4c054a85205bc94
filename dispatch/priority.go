package dispatch

import (
	"fmt"
	"strings"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/internal/native"
)

// Priority selects one of the global queues.
type Priority int

const (
	PriorityHigh       Priority = native.PriorityHigh
	PriorityDefault    Priority = native.PriorityDefault
	PriorityLow        Priority = native.PriorityLow
	PriorityBackground Priority = native.PriorityBackground
)

var priorityNames = map[Priority]string{
	PriorityHigh:       "high",
	PriorityDefault:    "default",
	PriorityLow:        "low",
	PriorityBackground: "background",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Valid reports whether p names a global queue.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority parses one of "high", "default", "low" or "background".
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, errors.InvalidInput("priority", fmt.Sprintf("unknown priority %q", s))
}

// Attr selects how a custom queue runs its work.
type Attr int

const (
	// Serial queues run one item at a time in submission order.
	Serial Attr = iota
	// Concurrent queues may run any number of items at once.
	Concurrent
)

func (a Attr) String() string {
	switch a {
	case Serial:
		return "serial"
	case Concurrent:
		return "concurrent"
	}
	return fmt.Sprintf("Attr(%d)", int(a))
}

// ParseAttr parses "serial" or "concurrent".
func ParseAttr(s string) (Attr, error) {
	switch strings.ToLower(s) {
	case "serial", "":
		return Serial, nil
	case "concurrent":
		return Concurrent, nil
	}
	return 0, errors.InvalidInput("queue attribute", fmt.Sprintf("unknown attribute %q", s))
}

// Kind tells how a queue was obtained.
type Kind int

const (
	KindMain Kind = iota
	KindGlobal
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindMain:
		return "main"
	case KindGlobal:
		return "global"
	case KindCustom:
		return "custom"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Backend names the native implementation this binary was built against:
// "darwin" for libdispatch and CoreServices, "portable" otherwise.
func Backend() string { return native.Backend }
