package render

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnsupportedFormat is returned for any declared format other than PDF or DOCX.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ConversionError reports a failed external conversion step: the tool is missing,
// exited non-zero, timed out, or produced output that could not be used.
type ConversionError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	b.WriteString("conversion failed")
	if e.Tool != "" {
		b.WriteString(" (" + e.Tool + ")")
	}
	b.WriteString(": " + e.Reason)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error { return e.Err }

// IsConversionError reports whether err carries a *ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// commandError classifies the failure of one external invocation.
func commandError(ctx context.Context, tool string, stderr string, err error) *ConversionError {
	ce := &ConversionError{Tool: tool, Err: err}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		ce.Reason = "timed out"
		ce.Err = context.DeadlineExceeded
	case errors.Is(ctx.Err(), context.Canceled):
		ce.Reason = "canceled"
		ce.Err = context.Canceled
	case errors.Is(err, exec.ErrNotFound):
		ce.Reason = "tool not available"
	case errors.As(err, &exitErr):
		ce.Reason = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		if msg := firstLine(stderr); msg != "" {
			ce.Reason += ": " + msg
		}
	default:
		ce.Reason = "could not run"
	}
	return ce
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
