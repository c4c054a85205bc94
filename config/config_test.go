package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the global config lookup at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
watch:
  paths: [/tmp/a, /tmp/b]
  latency: 250ms
  since: "42"
  flags: [file_events, watch_root]
  exclude: [/tmp/a/node_modules]
  ignore: ["**/*.swp"]
queue:
  label: com.example.watch
  attr: concurrent
`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, cfg.Watch.Paths)
	assert.Equal(t, []string{"file_events", "watch_root"}, cfg.Watch.Flags)
	assert.Equal(t, []string{"**/*.swp"}, cfg.Watch.Ignore)
	assert.Equal(t, "com.example.watch", cfg.Queue.Label)
	assert.Equal(t, "concurrent", cfg.Queue.Attr)

	latency, err := cfg.Watch.LatencyDuration()
	require.NoError(t, err)
	assert.Equal(t, "250ms", latency.String())

	id, ok, err := cfg.Watch.SinceCursor()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
}

func TestLoadTOML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version = "1.0"

[watch]
paths = ["/srv"]
latency = "1s"

[queue]
priority = "low"

[monitoring]
enabled = true
interval = 30
`), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv"}, cfg.Watch.Paths)
	assert.Equal(t, "low", cfg.Queue.Priority)

	var mon struct {
		Enabled  bool `yaml:"enabled"`
		Interval int  `yaml:"interval"`
	}
	require.NoError(t, cfg.UnmarshalExtension("monitoring", &mon))
	assert.True(t, mon.Enabled)
	assert.Equal(t, 30, mon.Interval)
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, DefaultLatency, cfg.Watch.Latency)
	assert.Equal(t, DefaultSince, cfg.Watch.Since)
	assert.Equal(t, []string{"file_events"}, cfg.Watch.Flags)
	assert.Equal(t, DefaultQueueLabel, cfg.Queue.Label)
	assert.Equal(t, DefaultQueueAttr, cfg.Queue.Attr)

	_, ok, err := cfg.Watch.SinceCursor()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtensions(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
notify:
  command: say
  repeat: 2
`), FormatYAML)
	require.NoError(t, err)
	require.Contains(t, cfg.Extensions, "notify")

	var notify struct {
		Command string `yaml:"command"`
		Repeat  int    `yaml:"repeat"`
	}
	require.NoError(t, cfg.UnmarshalExtension("notify", &notify))
	assert.Equal(t, "say", notify.Command)
	assert.Equal(t, 2, notify.Repeat)

	var missing struct{ X int }
	require.NoError(t, cfg.UnmarshalExtension("absent", &missing))
	assert.Zero(t, missing.X)
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("FSD_TEST_ROOT", "/data/project")
	cfg, err := LoadFromBytes([]byte(`
watch:
  paths: ["${FSD_TEST_ROOT}", "${FSD_TEST_UNSET:-/fallback}"]
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/project", "/fallback"}, cfg.Watch.Paths)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.ErrorCode
	}{
		{"bad latency", "watch:\n  latency: soon\n", errors.ErrCodeConfigValidation},
		{"negative latency", "watch:\n  latency: -1s\n", errors.ErrCodeConfigValidation},
		{"bad since", "watch:\n  since: yesterday\n", errors.ErrCodeConfigInvalid},
		{"unknown watch key", "watch:\n  recursive: true\n", errors.ErrCodeConfigInvalid},
		{"bad attr", "queue:\n  attr: parallel\n", errors.ErrCodeConfigInvalid},
		{"too many excludes", "watch:\n  exclude: [a, b, c, d, e, f, g, h, i]\n", errors.ErrCodeConfigInvalid},
		{"malformed yaml", "watch: [\n", errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err), "got %v", err)
		})
	}
}

func TestValidateDirect(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Exclude: make([]string, MaxExclude+1)}}
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))

	cfg = &Config{Queue: QueueConfig{Label: "a\x00b"}}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())

	cfg = &Config{Watch: WatchConfig{Paths: []string{" "}}}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())
}

func TestFindConfigFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	_, err := FindConfigFile(nested)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))

	want := writeFile(t, root, "fsdispatch.toml", "version = \"1.0\"\n")
	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "fsdispatch.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLoadAddsPathToErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fsdispatch.yml", "queue:\n  attr: sideways\n")
	_, err := Load(path)
	require.Error(t, err)
	ge, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, path, ge.Details["path"])
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatOf("x/fsdispatch.TOML"))
	assert.Equal(t, FormatYAML, FormatOf("fsdispatch.yml"))
	assert.Equal(t, FormatYAML, FormatOf("fsdispatch"))
}
