package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerNesting(t *testing.T) {
	p := &Profiler{}
	p.Start("ignored").Stop()

	p.Enable()
	outer := p.Start("outer")
	p.Start("inner").Stop()
	outer.Stop()
	p.Start("second").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	out := buf.String()

	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, "  - outer (")
	assert.Contains(t, out, "    - inner (")
	assert.Contains(t, out, "  - second (")
	assert.Less(t, strings.Index(out, "outer"), strings.Index(out, "second"))
}

func TestProfilerUnbalancedStop(t *testing.T) {
	p := &Profiler{}
	p.Enable()
	outer := p.Start("outer")
	p.Start("left-open")
	outer.Stop()
	p.Start("after").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	assert.Contains(t, buf.String(), "  - after (", "after is a root child once outer closes")
}

func TestCobraProfiler(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	cmd := &cobra.Command{Use: "x", Run: func(*cobra.Command, []string) {}}
	NewCobraProfiler().Attach(cmd)

	var errOut bytes.Buffer
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem})
	require.NoError(t, cmd.Execute())

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	assert.Contains(t, errOut.String(), "CPU profile written to "+cpu)
	assert.Contains(t, errOut.String(), "Memory profile written to "+mem)
}
