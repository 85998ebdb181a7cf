package process

// KillProcessGroup is only exercised with an invalid PID: PID 0 would target the
// test's own process group. Real kills are covered by the render runner timeout test.

import "testing"

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()
	KillProcessGroup(999999999)
}
