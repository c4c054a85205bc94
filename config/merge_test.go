package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHierarchicalMerging tests the three-level configuration merge:
// global -> project -> override
func TestHierarchicalMerging(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	globalDir := filepath.Join(xdg, "fsdispatch")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	writeFile(t, globalDir, "fsdispatch.yml", `
version: "1.0"
watch:
  latency: 2s
  ignore: ["**/.git/**"]
queue:
  label: com.example.global
notify:
  command: say
  repeat: 1
`)

	projectDir := t.TempDir()
	writeFile(t, projectDir, "fsdispatch.yml", `
watch:
  paths: [/srv/app]
  latency: 500ms
notify:
  repeat: 3
`)
	writeFile(t, projectDir, "fsdispatch.override.toml", `
[queue]
attr = "concurrent"
`)

	cfg, err := LoadFrom(projectDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/app"}, cfg.Watch.Paths, "project paths")
	assert.Equal(t, "500ms", cfg.Watch.Latency, "project overrides global latency")
	assert.Equal(t, []string{"**/.git/**"}, cfg.Watch.Ignore, "global ignore survives")
	assert.Equal(t, "com.example.global", cfg.Queue.Label)
	assert.Equal(t, "concurrent", cfg.Queue.Attr, "override wins")

	var notify struct {
		Command string `yaml:"command"`
		Repeat  int    `yaml:"repeat"`
	}
	require.NoError(t, cfg.UnmarshalExtension("notify", &notify))
	assert.Equal(t, "say", notify.Command, "extension keys merge one level deep")
	assert.Equal(t, 3, notify.Repeat)
}

func TestLoadLayered(t *testing.T) {
	isolate(t)
	projectDir := t.TempDir()
	projectPath := writeFile(t, projectDir, "fsdispatch.yaml", "watch:\n  paths: [/a]\n")
	overridePath := writeFile(t, projectDir, "fsdispatch.override.yml", "watch:\n  paths: [/b]\n")

	layered, err := LoadLayered(projectDir)
	require.NoError(t, err)

	assert.Nil(t, layered.Global)
	assert.Equal(t, projectPath, layered.FilePaths[SourceProject])
	assert.Equal(t, []string{"/a"}, layered.Project.Watch.Paths)
	require.Len(t, layered.Overrides, 1)
	assert.Equal(t, overridePath, layered.Overrides[0].Path)
	assert.Equal(t, []string{"/b"}, layered.Final.Watch.Paths)
	assert.Equal(t, DefaultLatency, layered.Default.Watch.Latency)
}

func TestBrokenOverrideIsSkipped(t *testing.T) {
	isolate(t)
	projectDir := t.TempDir()
	writeFile(t, projectDir, "fsdispatch.yml", "watch:\n  paths: [/a]\n")
	writeFile(t, projectDir, "fsdispatch.override.yml", "watch: [\n")

	cfg, err := LoadFrom(projectDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, cfg.Watch.Paths)
}

func TestMergeConfigsKeepsBase(t *testing.T) {
	base := &Config{
		Watch:      WatchConfig{Paths: []string{"/a"}, Flags: []string{"file_events"}},
		Extensions: map[string]interface{}{"x": map[string]interface{}{"k": 1}},
	}
	merged := mergeConfigs(base, &Config{
		Watch:      WatchConfig{Flags: []string{}},
		Extensions: map[string]interface{}{"x": map[string]interface{}{"j": 2}, "y": "v"},
	})

	assert.Equal(t, []string{"/a"}, merged.Watch.Paths)
	assert.Empty(t, merged.Watch.Flags, "an explicit empty list replaces")
	assert.Equal(t, map[string]interface{}{"k": 1, "j": 2}, merged.Extensions["x"])
	assert.Equal(t, "v", merged.Extensions["y"])
	assert.Equal(t, map[string]interface{}{"k": 1}, base.Extensions["x"], "base is not modified")
}
