package render

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/pagestore"
)

func TestPDFStrategy_Prepare(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{handle: poppler(t, "3")}
	s := NewPDFStrategy(runner, store, PDFOptions{Workers: 2})

	n, err := s.Prepare(context.Background(), "doc", "/in/source.pdf")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, store.Verify("doc", 3))
	assert.NoDirExists(t, store.StagingDir("doc"))

	assert.Equal(t, [][]string{{"/in/source.pdf"}}, runner.callsTo("pdfinfo"))
	raster := runner.callsTo("pdftoppm")
	require.Len(t, raster, 3)
	assert.Contains(t, raster, []string{
		"-f", "2", "-l", "2", "-r", "150", "-png", "-singlefile",
		"/in/source.pdf", pagestore.PageStem(store.StagingDir("doc"), 2),
	})
}

func TestPDFStrategy_PageCount(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   int
		reason string
	}{
		{name: "parsed", output: "Producer: x\nPages:   12\n", want: 12},
		{name: "missing", output: "Producer: x\n", reason: "page count missing from output"},
		{name: "zero pages", output: "Pages: 0\n", reason: "document has no pages"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{handle: func(context.Context, string, []string) (string, string, error) {
				return tc.output, "", nil
			}}
			s := NewPDFStrategy(runner, newTestStore(t), PDFOptions{})

			n, err := s.PageCount(context.Background(), "x.pdf")

			if tc.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.want, n)
				return
			}
			var ce *ConversionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "pdfinfo", ce.Tool)
			assert.Equal(t, tc.reason, ce.Reason)
		})
	}
}

func TestPDFStrategy_PageFailureLeavesNothingBehind(t *testing.T) {
	store := newTestStore(t)
	ok := poppler(t, "4")
	runner := &fakeRunner{handle: func(ctx context.Context, name string, args []string) (string, string, error) {
		if name == "pdftoppm" && args[1] == "3" {
			return "", "Syntax Error: broken xref\n", errors.New("exit status 1")
		}
		return ok(ctx, name, args)
	}}
	s := NewPDFStrategy(runner, store, PDFOptions{Workers: 1})

	_, err := s.Prepare(context.Background(), "doc", "in.pdf")

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pdftoppm", ce.Tool)
	assert.NoDirExists(t, store.Dir("doc"))
	assert.NoDirExists(t, store.StagingDir("doc"))
}

func TestPDFStrategy_MissingPageOutput(t *testing.T) {
	store := newTestStore(t)
	ok := poppler(t, "2")
	runner := &fakeRunner{handle: func(ctx context.Context, name string, args []string) (string, string, error) {
		if name == "pdftoppm" && args[1] == "2" {
			return "", "", nil
		}
		return ok(ctx, name, args)
	}}
	s := NewPDFStrategy(runner, store, PDFOptions{Workers: 1})

	_, err := s.Prepare(context.Background(), "doc", "in.pdf")

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "no output for page 2", ce.Reason)
	assert.NoDirExists(t, store.Dir("doc"))
}

func TestPDFStrategy_Timeout(t *testing.T) {
	runner := &fakeRunner{handle: func(ctx context.Context, _ string, _ []string) (string, string, error) {
		<-ctx.Done()
		return "", "", ctx.Err()
	}}
	s := NewPDFStrategy(runner, newTestStore(t), PDFOptions{Timeout: 20 * time.Millisecond})

	_, err := s.Prepare(context.Background(), "doc", "in.pdf")

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "timed out", ce.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPDFStrategy_ToolNotInstalled(t *testing.T) {
	runner := &fakeRunner{handle: func(context.Context, string, []string) (string, string, error) {
		return "", "", &exec.Error{Name: "pdfinfo", Err: exec.ErrNotFound}
	}}
	s := NewPDFStrategy(runner, newTestStore(t), PDFOptions{})

	_, err := s.Prepare(context.Background(), "doc", "in.pdf")

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "tool not available", ce.Reason)
	assert.True(t, IsConversionError(err))
}

func TestResolvePageWorkers(t *testing.T) {
	assert.Equal(t, 5, ResolvePageWorkers(5))
	n := ResolvePageWorkers(0)
	assert.GreaterOrEqual(t, n, MinPageWorkers)
	assert.LessOrEqual(t, n, MaxPageWorkers)
}
