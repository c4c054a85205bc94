package cli

import (
	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/fsevents"
	"github.com/spf13/pflag"
)

// PriorityValue is a pflag.Value for a global queue priority.
type PriorityValue struct {
	P   dispatch.Priority
	set bool
}

var _ pflag.Value = (*PriorityValue)(nil)

func (v *PriorityValue) String() string { return v.P.String() }
func (v *PriorityValue) Type() string   { return "priority" }

func (v *PriorityValue) Set(s string) error {
	p, err := dispatch.ParsePriority(s)
	if err != nil {
		return err
	}
	v.P, v.set = p, true
	return nil
}

// Changed reports whether the flag was given on the command line.
func (v *PriorityValue) Changed() bool { return v.set }

// AttrValue is a pflag.Value for a custom queue attribute.
type AttrValue struct {
	A dispatch.Attr
}

var _ pflag.Value = (*AttrValue)(nil)

func (v *AttrValue) String() string { return v.A.String() }
func (v *AttrValue) Type() string   { return "attr" }

func (v *AttrValue) Set(s string) error {
	a, err := dispatch.ParseAttr(s)
	if err != nil {
		return err
	}
	v.A = a
	return nil
}

// CreateFlagsValue is a pflag.Value accumulating stream creation flags.
// Repeating the flag or separating names with commas both add to the set.
type CreateFlagsValue struct {
	F fsevents.CreateFlags
}

var _ pflag.Value = (*CreateFlagsValue)(nil)

func (v *CreateFlagsValue) String() string { return v.F.String() }
func (v *CreateFlagsValue) Type() string   { return "flags" }

func (v *CreateFlagsValue) Set(s string) error {
	f, err := fsevents.ParseCreateFlags(s)
	if err != nil {
		return err
	}
	v.F |= f
	return nil
}
