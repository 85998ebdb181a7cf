package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// DocumentRepository persists document rows. Lifecycle rules belong to the render
// dispatcher and the services.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List orders by creation time, newest first.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete drops the row together with its loans. Deleting a missing row succeeds.
	Delete(ctx context.Context, id string) error

	// CompleteIngestion sets TotalPages and status ready in a single write, guarded by
	// status processing. A document in any other state yields ErrNotFound.
	CompleteIngestion(ctx context.Context, id string, pages int) error

	UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error

	// MarkFailed moves a processing document to failed. A document in any other state
	// yields ErrNotFound.
	MarkFailed(ctx context.Context, id string) error

	// FailStale marks failed every document still processing whose last update is
	// older than before, and returns how many it changed.
	FailStale(ctx context.Context, before time.Time) (int, error)
}
