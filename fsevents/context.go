package fsevents

// RetainFunc is called when a stream takes a reference to its context.
type RetainFunc func(info []uintptr)

// ReleaseFunc is called when a stream drops its reference to its context.
type ReleaseFunc func(info []uintptr)

// CopyDescriptionFunc renders the context for stream descriptions.
type CopyDescriptionFunc func(info []uintptr) string

// Context carries caller-owned auxiliary handles to a stream, plus optional
// hooks the stream calls as it retains, releases and describes them. The
// stream never interprets Info; it is handed back to every callback.
type Context struct {
	Version         int
	Info            []uintptr
	Retain          RetainFunc
	Release         ReleaseFunc
	CopyDescription CopyDescriptionFunc
}

// NewContext returns a version 0 context with no hooks.
func NewContext(info ...uintptr) *Context {
	return &Context{Info: info}
}

// NewContextWithCallbacks returns a context with every field set.
func NewContextWithCallbacks(version int, info []uintptr, retain RetainFunc, release ReleaseFunc, copyDescription CopyDescriptionFunc) *Context {
	return &Context{
		Version:         version,
		Info:            info,
		Retain:          retain,
		Release:         release,
		CopyDescription: copyDescription,
	}
}

// mergeCallback returns the auxiliary list with h prepended as element zero.
// The context itself is not modified.
func (c *Context) mergeCallback(h uintptr) []uintptr {
	merged := make([]uintptr, 0, len(c.Info)+1)
	merged = append(merged, h)
	return append(merged, c.Info...)
}
