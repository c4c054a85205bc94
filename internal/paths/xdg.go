// Package paths resolves the per-user directories fsdispatch reads and
// writes.
//
// Resolution order:
// 1. FSDISPATCH_HOME (portable root) → $FSDISPATCH_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/fsdispatch
// 3. Platform defaults → ~/.config/fsdispatch, ~/.local/state/fsdispatch
package paths

import (
	"os"
	"path/filepath"
)

const appName = "fsdispatch"

func base(portable, xdgVar string, fallback ...string) string {
	if home := os.Getenv("FSDISPATCH_HOME"); home != "" {
		return filepath.Join(home, portable)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appName)...)...)
	}
	return ""
}

// ConfigDir returns the directory holding the global fsdispatch.yml, or ""
// when no home directory can be determined.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the directory for log files and saved cursors, or "" when no home
// directory can be determined.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}
