package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Backend != "darwin" && info.Backend != "portable" {
		t.Errorf("unexpected backend %q", info.Backend)
	}
	if !strings.Contains(info.String(), "Backend:\t"+info.Backend) {
		t.Errorf("String() missing backend line:\n%s", info.String())
	}
}
