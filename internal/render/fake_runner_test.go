package render

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docvault/internal/pagestore"
)

// fakeRunner stands in for poppler and LibreOffice.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	handle func(ctx context.Context, name string, args []string) (string, string, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	return f.handle(ctx, name, args)
}

func (f *fakeRunner) callsTo(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == name {
			out = append(out, c[1:])
		}
	}
	return out
}

// poppler answers pdfinfo with the given page count and makes pdftoppm write a PNG.
func poppler(t *testing.T, pages string) func(context.Context, string, []string) (string, string, error) {
	return func(_ context.Context, name string, args []string) (string, string, error) {
		switch name {
		case "pdfinfo":
			return "Title:          x\nPages:          " + pages + "\nEncrypted:      no\n", "", nil
		case "pdftoppm":
			writePNG(t, args[len(args)-1]+pagestore.PageExt, 8, 6)
			return "", "", nil
		}
		t.Fatalf("unexpected command %s", name)
		return "", "", nil
	}
}

// libreOffice emulates "soffice --convert-to pdf <in> --outdir <dir>".
func libreOffice(t *testing.T, next func(context.Context, string, []string) (string, string, error)) func(context.Context, string, []string) (string, string, error) {
	return func(ctx context.Context, name string, args []string) (string, string, error) {
		if name != "soffice" {
			return next(ctx, name, args)
		}
		i := slices.Index(args, "--outdir")
		require.GreaterOrEqual(t, i, 1)
		in := args[i-1]
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		require.NoError(t, os.WriteFile(filepath.Join(args[i+1], stem+".pdf"), []byte("%PDF-1.7"), 0o640))
		return "", "", nil
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestStore(t *testing.T) *pagestore.Store {
	t.Helper()
	root := t.TempDir()
	s, err := pagestore.New(filepath.Join(root, "original"), filepath.Join(root, "rendered"))
	require.NoError(t, err)
	return s
}
