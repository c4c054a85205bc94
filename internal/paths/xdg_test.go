package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortableHome(t *testing.T) {
	t.Setenv("FSDISPATCH_HOME", "/opt/fsd")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	assert.Equal(t, "/opt/fsd/config", ConfigDir())
	assert.Equal(t, "/opt/fsd/state", StateDir())
}

func TestXDGVariables(t *testing.T) {
	t.Setenv("FSDISPATCH_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	assert.Equal(t, "/xdg/config/fsdispatch", ConfigDir())
	assert.Equal(t, "/xdg/state/fsdispatch", StateDir())
}

func TestHomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FSDISPATCH_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config", "fsdispatch"), ConfigDir())
	assert.Equal(t, filepath.Join(home, ".local", "state", "fsdispatch"), StateDir())
}
