package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("watching")
	p.Field("queue", "com.grovetools.fsdispatch.watch")
	p.Path("root", "/tmp/project")
	p.Event(42, "/tmp/project/a.txt", "ItemCreated|ItemIsFile")
	p.Warn("rescan needed")
	p.Error("stream failed", errors.New("boom"))
	p.Divider()

	out := buf.String()
	for _, want := range []string{
		"watching",
		"queue", "com.grovetools.fsdispatch.watch",
		"/tmp/project",
		"42", "/tmp/project/a.txt", "ItemCreated|ItemIsFile",
		"rescan needed",
		"stream failed", "boom",
		"─",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 7 {
		t.Errorf("Expected 7 lines, got %d", lines)
	}
}
