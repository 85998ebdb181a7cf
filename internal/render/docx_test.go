package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDOCXStrategy_Prepare(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{handle: libreOffice(t, poppler(t, "2"))}
	pdf := NewPDFStrategy(runner, store, PDFOptions{})
	s := NewDOCXStrategy(runner, store, pdf, DOCXOptions{})

	input := store.OriginalPath("upload-1", ".docx")
	require.NoError(t, os.WriteFile(input, []byte("PK"), 0o640))

	n, err := s.Prepare(context.Background(), "doc", input)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, store.ConvertedPDFPath("doc"))
	assert.NoFileExists(t, filepath.Join(store.OriginalsDir(), "upload-1.pdf"))
	assert.NoError(t, store.Verify("doc", 2))

	office := runner.callsTo("soffice")
	require.Len(t, office, 1)
	args := office[0]
	assert.Equal(t, "--headless", args[0])
	assert.True(t, strings.HasPrefix(args[1], "-env:UserInstallation=file://"), args[1])
	assert.Equal(t, []string{"--convert-to", "pdf", input, "--outdir", store.OriginalsDir()}, args[2:])

	// the converted PDF, not the upload, is rasterized
	assert.Equal(t, [][]string{{store.ConvertedPDFPath("doc")}}, runner.callsTo("pdfinfo"))
}

func TestDOCXStrategy_ConvertedFileNeverAppears(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{handle: func(context.Context, string, []string) (string, string, error) {
		return "", "", nil
	}}
	s := NewDOCXStrategy(runner, store, NewPDFStrategy(runner, store, PDFOptions{}), DOCXOptions{})
	s.waitFor = 60 * time.Millisecond

	_, err := s.Prepare(context.Background(), "doc", store.OriginalPath("u", ".docx"))

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "soffice", ce.Tool)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, runner.callsTo("pdfinfo"))
	assert.NoDirExists(t, store.Dir("doc"))
}

func TestDOCXStrategy_PDFStageFailure(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{handle: libreOffice(t, poppler(t, "none"))}
	s := NewDOCXStrategy(runner, store, NewPDFStrategy(runner, store, PDFOptions{}), DOCXOptions{})

	_, err := s.Prepare(context.Background(), "doc", store.OriginalPath("u", ".docx"))

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pdfinfo", ce.Tool)
	assert.NoDirExists(t, store.Dir("doc"))
}
