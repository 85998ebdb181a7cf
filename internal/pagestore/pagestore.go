// Package pagestore owns the on-disk layout of uploaded sources and rendered pages:
//
//	<originals>/<uploadID><ext>     uploaded source files
//	<originals>/<documentID>.pdf     PDF converted from a DOCX source
//	<rendered>/<documentID>/page-N.png
//
// Pages are rendered into <rendered>/<documentID>.partial and published with a single
// rename, so a reader never sees a partially rendered document.
package pagestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PageExt is the extension of every page artifact.
const PageExt = ".png"

const (
	pagePrefix    = "page-"
	stagingSuffix = ".partial"
)

var (
	// ErrCorrupt reports a page set that disagrees with the stored page count.
	ErrCorrupt = errors.New("page store corrupted")
	// ErrPageNotFound reports a missing page artifact.
	ErrPageNotFound = errors.New("page not found")
	// ErrInvalidID rejects identifiers that could escape the store root.
	ErrInvalidID = errors.New("invalid document id")
)

// Store is a filesystem-backed page repository. It is safe for concurrent use: writes
// only happen once per document during ingestion, into a directory nobody reads yet.
type Store struct {
	originals string
	rendered  string
}

// New returns a Store rooted at the given directories, creating them if needed.
func New(originalsDir, renderedDir string) (*Store, error) {
	for _, d := range []string{originalsDir, renderedDir} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Store{originals: originalsDir, rendered: renderedDir}, nil
}

// OriginalsDir is where uploads and converted PDFs live.
func (s *Store) OriginalsDir() string { return s.originals }

// RenderedDir is the parent of every per-document page directory.
func (s *Store) RenderedDir() string { return s.rendered }

// Dir is the published page directory of a document.
func (s *Store) Dir(docID string) string {
	return filepath.Join(s.rendered, docID)
}

// StagingDir is the directory pages are rendered into before publication.
func (s *Store) StagingDir(docID string) string {
	return filepath.Join(s.rendered, docID+stagingSuffix)
}

// PageName is the file name of page n, e.g. "page-3.png".
func PageName(n int) string {
	return pagePrefix + strconv.Itoa(n) + PageExt
}

// PageStem is the output stem handed to the rasterizer, which appends PageExt itself.
func PageStem(dir string, n int) string {
	return filepath.Join(dir, pagePrefix+strconv.Itoa(n))
}

// Path is the location of page n of a published document.
func (s *Store) Path(docID string, n int) string {
	return filepath.Join(s.Dir(docID), PageName(n))
}

// Exists reports whether path names an existing regular file.
func (s *Store) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// OriginalPath is where an upload is stored before a document id exists.
func (s *Store) OriginalPath(uploadID, ext string) string {
	return filepath.Join(s.originals, uploadID+strings.ToLower(ext))
}

// ConvertedPDFPath is where the PDF produced from a DOCX source is kept.
func (s *Store) ConvertedPDFPath(docID string) string {
	return filepath.Join(s.originals, docID+".pdf")
}

// PrepareStaging creates an empty staging directory for docID, discarding leftovers of
// an earlier failed attempt.
func (s *Store) PrepareStaging(docID string) (string, error) {
	if err := validID(docID); err != nil {
		return "", err
	}
	dir := s.StagingDir(docID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("reset staging dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}

// Publish atomically moves the staged pages of docID into place after checking that
// exactly pages contiguous artifacts were produced.
func (s *Store) Publish(docID string, pages int) error {
	staging := s.StagingDir(docID)
	if err := verifyDir(staging, pages); err != nil {
		return err
	}
	final := s.Dir(docID)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("publish %s: page directory already exists", docID)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("publish %s: %w", docID, err)
	}
	return nil
}

// Discard removes the staging directory of docID.
func (s *Store) Discard(docID string) error {
	if err := validID(docID); err != nil {
		return err
	}
	return os.RemoveAll(s.StagingDir(docID))
}

// DeleteAll removes every page artifact of docID, published or staged.
func (s *Store) DeleteAll(docID string) error {
	if err := validID(docID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(docID)); err != nil {
		return err
	}
	return os.RemoveAll(s.StagingDir(docID))
}

// RemoveOriginals deletes the uploaded source and, if present, the converted PDF.
// Missing files are not an error.
func (s *Store) RemoveOriginals(docID, sourcePath string) error {
	var errs []error
	for _, p := range []string{sourcePath, s.ConvertedPDFPath(docID)} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadPage loads page n of docID into memory.
func (s *Store) ReadPage(docID string, n int) ([]byte, error) {
	if err := validID(docID); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrPageNotFound
	}
	b, err := os.ReadFile(s.Path(docID, n))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return b, nil
}

// Count returns the number of page artifacts published for docID.
func (s *Store) Count(docID string) (int, error) {
	nums, err := pageNumbers(s.Dir(docID))
	if err != nil {
		return 0, err
	}
	return len(nums), nil
}

// Verify checks that docID has exactly want pages numbered 1..want.
func (s *Store) Verify(docID string, want int) error {
	return verifyDir(s.Dir(docID), want)
}

func verifyDir(dir string, want int) error {
	nums, err := pageNumbers(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s missing", ErrCorrupt, filepath.Base(dir))
		}
		return err
	}
	if len(nums) != want {
		return fmt.Errorf("%w: %d artifacts, expected %d", ErrCorrupt, len(nums), want)
	}
	for i, n := range nums {
		if n != i+1 {
			return fmt.Errorf("%w: gap before page %d", ErrCorrupt, n)
		}
	}
	return nil
}

// pageNumbers lists the page numbers found in dir in ascending order.
func pageNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	nums := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, pagePrefix) || !strings.HasSuffix(name, PageExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pagePrefix), PageExt))
		if err != nil || n < 1 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return ErrInvalidID
	}
	return nil
}
