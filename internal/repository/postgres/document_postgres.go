package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, title, file_name, file_path, file_type, total_pages, total_copies,
		copyright_status, status, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var d model.Document
	if err := s.Scan(
		&d.ID,
		&d.Title,
		&d.FileName,
		&d.FilePath,
		&d.Format,
		&d.TotalPages,
		&d.TotalCopies,
		&d.CopyrightStatus,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, title, file_name, file_path, file_type, total_pages, total_copies,
			copyright_status, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Title,
		doc.FileName,
		doc.FilePath,
		doc.Format,
		doc.TotalPages,
		doc.TotalCopies,
		doc.CopyrightStatus,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + documentColumns + ` FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
// Loans of the document go with it (ON DELETE CASCADE).
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// CompleteIngestion publishes the page count together with the ready status.
func (r *DocumentPostgres) CompleteIngestion(ctx context.Context, id string, pages int) error {
	const q = `
		UPDATE documents
		SET total_pages = $2, status = 'ready', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, q, id, pages)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// UpdateStatus sets the document status.
func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	const q = `UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkFailed sets status failed on a document that is still processing.
func (r *DocumentPostgres) MarkFailed(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// FailStale fails processing documents not updated since before.
func (r *DocumentPostgres) FailStale(ctx context.Context, before time.Time) (int, error) {
	const q = `
		UPDATE documents
		SET status = 'failed', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`
	res, err := r.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// notFound translates sql.ErrNoRows into repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
