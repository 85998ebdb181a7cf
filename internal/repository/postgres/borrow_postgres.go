package postgres

import (
	"context"
	"database/sql"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// BorrowPostgres is a PostgreSQL implementation of repository.BorrowRepository.
type BorrowPostgres struct {
	db *sql.DB
}

// NewBorrowPostgres creates a new BorrowPostgres repository.
func NewBorrowPostgres(db *sql.DB) *BorrowPostgres {
	return &BorrowPostgres{db: db}
}

var _ repository.BorrowRepository = (*BorrowPostgres)(nil)

const borrowColumns = `id, user_id, document_id, borrow_date, due_date, return_date, status`

func scanBorrow(s rowScanner) (*model.Borrow, error) {
	var (
		b        model.Borrow
		returned sql.NullTime
	)
	if err := s.Scan(
		&b.ID,
		&b.UserID,
		&b.DocumentID,
		&b.BorrowDate,
		&b.DueDate,
		&returned,
		&b.Status,
	); err != nil {
		return nil, notFound(err)
	}
	if returned.Valid {
		t := returned.Time
		b.ReturnDate = &t
	}
	return &b, nil
}

// CreateIfAvailable runs the capacity check and the insert in one transaction holding
// a row lock on the document, which serializes concurrent borrows of the same document.
func (r *BorrowPostgres) CreateIfAvailable(ctx context.Context, b *model.Borrow) (out *model.Borrow, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var copies int
	const qLock = `SELECT total_copies FROM documents WHERE id = $1 FOR UPDATE`
	if err = tx.QueryRowContext(ctx, qLock, b.DocumentID).Scan(&copies); err != nil {
		return nil, notFound(err)
	}

	const qExpire = `
		UPDATE borrows SET status = 'overdue'
		WHERE document_id = $1 AND status = 'borrowed' AND due_date < $2
	`
	if _, err = tx.ExecContext(ctx, qExpire, b.DocumentID, b.BorrowDate); err != nil {
		return nil, err
	}

	var active, mine int
	const qCount = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM borrows
		WHERE document_id = $1 AND status = 'borrowed'
	`
	if err = tx.QueryRowContext(ctx, qCount, b.DocumentID, b.UserID).Scan(&active, &mine); err != nil {
		return nil, err
	}
	if mine > 0 {
		return nil, repository.ErrAlreadyBorrowed
	}
	if active >= copies {
		return nil, repository.ErrCapacityExceeded
	}

	const qInsert = `
		INSERT INTO borrows (id, user_id, document_id, borrow_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + borrowColumns
	out, err = scanBorrow(tx.QueryRowContext(ctx, qInsert,
		b.ID,
		b.UserID,
		b.DocumentID,
		b.BorrowDate,
		b.DueDate,
		b.Status,
	))
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindActive returns the user's borrowed loan of the document.
func (r *BorrowPostgres) FindActive(ctx context.Context, userID, documentID string) (*model.Borrow, error) {
	const q = `SELECT ` + borrowColumns + ` FROM borrows
		WHERE user_id = $1 AND document_id = $2 AND status = 'borrowed'
		ORDER BY borrow_date DESC
		LIMIT 1`
	return scanBorrow(r.db.QueryRowContext(ctx, q, userID, documentID))
}

// MarkOverdue flips a borrowed loan to overdue.
func (r *BorrowPostgres) MarkOverdue(ctx context.Context, id string) error {
	const q = `UPDATE borrows SET status = 'overdue' WHERE id = $1 AND status = 'borrowed'`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// MarkReturned stamps the return date on the user's active loan of the document.
func (r *BorrowPostgres) MarkReturned(ctx context.Context, documentID, userID string, at time.Time) (*model.Borrow, error) {
	const q = `
		UPDATE borrows SET status = 'returned', return_date = $3
		WHERE id = (
			SELECT id FROM borrows
			WHERE document_id = $1 AND user_id = $2 AND status = 'borrowed'
			ORDER BY borrow_date DESC
			LIMIT 1
		)
		RETURNING ` + borrowColumns
	return scanBorrow(r.db.QueryRowContext(ctx, q, documentID, userID, at))
}

// ListByUser returns a page of the user's loans.
func (r *BorrowPostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Borrow], error) {
	const qCount = `SELECT COUNT(*) FROM borrows WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + borrowColumns + ` FROM borrows
		WHERE user_id = $1
		ORDER BY borrow_date DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Borrow, 0)
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Borrow]{Items: items, Total: total}, nil
}
