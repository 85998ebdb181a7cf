package render

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"docvault/internal/metrics"
	"docvault/internal/process"
)

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec. When ctx is done the whole
// process group is killed, so converters that fork helpers do not outlive the timeout.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the kill.
	WaitDelay time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	process.Isolate(cmd)
	cmd.Cancel = func() error {
		process.KillProcessGroup(cmd.Process.Pid)
		return nil
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// tool is one external program with its per-invocation timeout.
type tool struct {
	name    string
	bin     string
	timeout time.Duration
}

// run invokes the tool under its own deadline and maps every failure to *ConversionError.
func (t tool) run(ctx context.Context, runner CommandRunner, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	stdout, stderr, err := runner.Run(cctx, t.bin, args...)
	if err != nil {
		metrics.ConversionFailures.WithLabelValues(t.name).Inc()
		return "", commandError(cctx, t.name, stderr, err)
	}
	return stdout, nil
}
