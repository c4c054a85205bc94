package fsevents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/fsdispatch/errors"
)

// CreateFlags modify how a stream is created.
type CreateFlags uint32

const (
	CreateNone            CreateFlags = 0x00000000
	CreateUseCFTypes      CreateFlags = 0x00000001
	CreateNoDefer         CreateFlags = 0x00000002
	CreateWatchRoot       CreateFlags = 0x00000004
	CreateIgnoreSelf      CreateFlags = 0x00000008
	CreateFileEvents      CreateFlags = 0x00000010
	CreateMarkSelf        CreateFlags = 0x00000020
	CreateUseExtendedData CreateFlags = 0x00000040
	CreateFullHistory     CreateFlags = 0x00000080
)

var createFlagNames = []struct {
	flag CreateFlags
	name string
}{
	{CreateUseCFTypes, "use_cf_types"},
	{CreateNoDefer, "no_defer"},
	{CreateWatchRoot, "watch_root"},
	{CreateIgnoreSelf, "ignore_self"},
	{CreateFileEvents, "file_events"},
	{CreateMarkSelf, "mark_self"},
	{CreateUseExtendedData, "use_extended_data"},
	{CreateFullHistory, "full_history"},
}

func (f CreateFlags) String() string {
	if f == CreateNone {
		return "none"
	}
	var parts []string
	rest := f
	for _, n := range createFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, ",")
}

// ParseCreateFlags parses a comma-separated list of flag names such as
// "file_events,watch_root". "none" and the empty string yield CreateNone.
func ParseCreateFlags(s string) (CreateFlags, error) {
	var flags CreateFlags
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" || part == "none" {
			continue
		}
		f, err := parseCreateFlag(part)
		if err != nil {
			return 0, err
		}
		flags |= f
	}
	return flags, nil
}

func parseCreateFlag(name string) (CreateFlags, error) {
	for _, n := range createFlagNames {
		if n.name == name {
			return n.flag, nil
		}
	}
	return 0, errors.InvalidInput("create flag", fmt.Sprintf("unknown flag %q", name))
}

// CreateFlagNames lists the names ParseCreateFlags accepts.
func CreateFlagNames() []string {
	names := make([]string, 0, len(createFlagNames))
	for _, n := range createFlagNames {
		names = append(names, n.name)
	}
	sort.Strings(names)
	return names
}

// EventFlags classify one change record.
type EventFlags uint32

const (
	EventNone               EventFlags = 0x00000000
	EventMustScanSubDirs    EventFlags = 0x00000001
	EventUserDropped        EventFlags = 0x00000002
	EventKernelDropped      EventFlags = 0x00000004
	EventIDsWrapped         EventFlags = 0x00000008
	EventHistoryDone        EventFlags = 0x00000010
	EventRootChanged        EventFlags = 0x00000020
	EventMount              EventFlags = 0x00000040
	EventUnmount            EventFlags = 0x00000080
	EventItemCreated        EventFlags = 0x00000100
	EventItemRemoved        EventFlags = 0x00000200
	EventItemInodeMetaMod   EventFlags = 0x00000400
	EventItemRenamed        EventFlags = 0x00000800
	EventItemModified       EventFlags = 0x00001000
	EventItemFinderInfoMod  EventFlags = 0x00002000
	EventItemChangeOwner    EventFlags = 0x00004000
	EventItemXattrMod       EventFlags = 0x00008000
	EventItemIsFile         EventFlags = 0x00010000
	EventItemIsDir          EventFlags = 0x00020000
	EventItemIsSymlink      EventFlags = 0x00040000
	EventOwnEvent           EventFlags = 0x00080000
	EventItemIsHardlink     EventFlags = 0x00100000
	EventItemIsLastHardlink EventFlags = 0x00200000
	EventItemCloned         EventFlags = 0x00400000
)

var eventFlagNames = []struct {
	flag EventFlags
	name string
}{
	{EventMustScanSubDirs, "MustScanSubDirs"},
	{EventUserDropped, "UserDropped"},
	{EventKernelDropped, "KernelDropped"},
	{EventIDsWrapped, "EventIdsWrapped"},
	{EventHistoryDone, "HistoryDone"},
	{EventRootChanged, "RootChanged"},
	{EventMount, "Mount"},
	{EventUnmount, "Unmount"},
	{EventItemCreated, "ItemCreated"},
	{EventItemRemoved, "ItemRemoved"},
	{EventItemInodeMetaMod, "ItemInodeMetaMod"},
	{EventItemRenamed, "ItemRenamed"},
	{EventItemModified, "ItemModified"},
	{EventItemFinderInfoMod, "ItemFinderInfoMod"},
	{EventItemChangeOwner, "ItemChangeOwner"},
	{EventItemXattrMod, "ItemXattrMod"},
	{EventItemIsFile, "ItemIsFile"},
	{EventItemIsDir, "ItemIsDir"},
	{EventItemIsSymlink, "ItemIsSymlink"},
	{EventOwnEvent, "OwnEvent"},
	{EventItemIsHardlink, "ItemIsHardlink"},
	{EventItemIsLastHardlink, "ItemIsLastHardlink"},
	{EventItemCloned, "ItemCloned"},
}

// Has reports whether every bit of want is set.
func (f EventFlags) Has(want EventFlags) bool { return f&want == want }

// NeedsRescan reports whether the stream lost events below the path and the
// caller must rescan it.
func (f EventFlags) NeedsRescan() bool {
	return f&(EventMustScanSubDirs|EventUserDropped|EventKernelDropped) != 0
}

func (f EventFlags) String() string {
	if f == EventNone {
		return "None"
	}
	var parts []string
	rest := f
	for _, n := range eventFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}
