//go:build !windows

package process

import (
	"os/exec"
	"testing"
)

func TestIsolate_SetsProcessGroup(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("true")
	Isolate(cmd)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatal("expected Setpgid to be enabled")
	}
}
