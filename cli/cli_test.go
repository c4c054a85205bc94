package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/fsevents"
	"github.com/grovetools/fsdispatch/version"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagValues(t *testing.T) {
	var p PriorityValue
	assert.False(t, p.Changed())
	require.NoError(t, p.Set("Background"))
	assert.Equal(t, dispatch.PriorityBackground, p.P)
	assert.True(t, p.Changed())
	assert.Equal(t, "background", p.String())
	assert.Error(t, p.Set("urgent"))

	var a AttrValue
	require.NoError(t, a.Set("concurrent"))
	assert.Equal(t, dispatch.Concurrent, a.A)
	assert.True(t, errors.Is(a.Set("parallel"), errors.ErrCodeInvalidInput))

	var f CreateFlagsValue
	require.NoError(t, f.Set("file_events"))
	require.NoError(t, f.Set("no_defer,watch_root"))
	assert.Equal(t, fsevents.CreateFileEvents|fsevents.CreateNoDefer|fsevents.CreateWatchRoot, f.F)
	assert.Error(t, f.Set("recursive"))
}

func TestFlagValuesOnCommand(t *testing.T) {
	var (
		p PriorityValue
		f CreateFlagsValue
	)
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().Var(&p, "priority", "")
	cmd.Flags().Var(&f, "flag", "")
	cmd.SetArgs([]string{"--priority", "low", "--flag", "file_events", "--flag", "ignore_self"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, dispatch.PriorityLow, p.P)
	assert.Equal(t, fsevents.CreateFileEvents|fsevents.CreateIgnoreSelf, f.F)
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config not found", errors.ConfigNotFound("/x"), "Configuration not found"},
		{"config invalid", errors.ConfigInvalid("bad yaml").WithDetail("path", "/p/fsdispatch.yml"), "Check /p/fsdispatch.yml"},
		{"invalid state", errors.InvalidState("flush", "stopped"), "Cannot flush while stopped"},
		{"native", errors.NativeResourceUnavailable("queue"), "could not create a queue"},
		{"timeout", errors.Timeout("group wait", 0), "group wait timed out"},
		{"plain", assert.AnError, "Error: " + assert.AnError.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	assert.NoError(t, NewErrorHandler(false).Handle(nil))
}

func TestErrorHandlerVerbose(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &buf}
	_ = h.Handle(errors.InvalidInput("label", "contains NUL"))
	assert.Contains(t, buf.String(), `"code": "INVALID_INPUT"`)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 10))
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "a\nb", wrapText("a\nb", 10))
}

func TestParseDescription(t *testing.T) {
	desc, ex := parseDescription("Watch paths.\n\nExamples:\n  fsdispatch watch .\n")
	assert.Equal(t, "Watch paths.", desc)
	assert.Equal(t, "fsdispatch watch .", ex)

	desc, ex = parseDescription("No examples here.")
	assert.Equal(t, "No examples here.", desc)
	assert.Empty(t, ex)
}

func TestParseChoices(t *testing.T) {
	desc, choices := parseChoices("Queue priority: high, default, low, or background (selects a global queue)")
	assert.Equal(t, "Queue priority: (selects a global queue)", desc)
	assert.Equal(t, []string{"high", "default", "low", "background"}, choices)

	desc, choices = parseChoices("Attr: serial, concurrent")
	assert.Equal(t, "Attr: serial, concurrent", desc)
	assert.Nil(t, choices)

	desc, choices = parseChoices("Plain usage")
	assert.Equal(t, "Plain usage", desc)
	assert.Nil(t, choices)
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("fsdispatch", "Watch directories")
	sub := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Stream change batches",
		Long:  "Stream change batches.\n\nExamples:\n  # current dir\n  fsdispatch watch .",
		RunE:  func(*cobra.Command, []string) error { return nil },
	}
	sub.Flags().Duration("latency", 0, "Coalescing latency")
	root.AddCommand(sub)
	ApplyStyledHelpRecursive(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"watch", "--help"})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "FSDISPATCH WATCH")
	assert.Contains(t, out, "USAGE")
	assert.Contains(t, out, "FLAGS")
	assert.Contains(t, out, "--latency")
	assert.Contains(t, out, "EXAMPLES")
	assert.Contains(t, out, "# current dir")
}

func TestVersionCommandJSON(t *testing.T) {
	root := NewStandardCommand("fsdispatch", "")
	root.AddCommand(NewVersionCommand("fsdispatch"))

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info version.Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.GetInfo(), info)

	buf.Reset()
	root.SetArgs([]string{"version", "--json=false"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "fsdispatch "+version.Version))
}

func TestInitializeColor(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	t.Setenv("NO_COLOR", "")
	t.Setenv("COLORTERM", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	InitializeColor()
	assert.Equal(t, termenv.TrueColor, lipgloss.ColorProfile())

	t.Setenv("NO_COLOR", "1")
	InitializeColor()
	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile())
}
