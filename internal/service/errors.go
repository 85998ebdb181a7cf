package service

import (
	"errors"
	"fmt"

	"docvault/internal/repository"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("not found")
	ErrReaderNil  = errors.New("reader is nil")
	// ErrAccessDenied is deliberately generic: it never says why access was refused.
	ErrAccessDenied = errors.New("borrow required")
	// ErrBusy reports an upload that could not be queued for conversion.
	ErrBusy = errors.New("ingestion is busy")
)

// notFound maps repository.ErrNotFound to ErrNotFound and passes everything else through.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// pageWindow applies default and maximum limits to a limit/offset pair.
func pageWindow(limit, offset int) repository.PageQuery {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.PageQuery{Limit: limit, Offset: offset}
}

// Listing bounds shared by every paginated use case.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)
