// Package memory is an in-process implementation of the repository interfaces, used
// when no database is configured and by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// Store holds documents and loans behind one lock, so a borrow sees a consistent view
// of the document's capacity.
type Store struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	borrows map[string]*model.Borrow
}

func New() *Store {
	return &Store{
		docs:    make(map[string]*model.Document),
		borrows: make(map[string]*model.Borrow),
	}
}

// Documents returns the document repository view of the store.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Borrows returns the loan repository view of the store.
func (s *Store) Borrows() *BorrowRepo { return &BorrowRepo{s: s} }

type DocumentRepo struct{ s *Store }

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

func (r *DocumentRepo) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := *doc
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	r.s.docs[d.ID] = &d
	out := d
	return &out, nil
}

func (r *DocumentRepo) FindByID(_ context.Context, id string) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (r *DocumentRepo) List(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]model.Document, 0, len(r.s.docs))
	for _, d := range r.s.docs {
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return &repository.PageResult[model.Document]{Items: window(all, pq), Total: len(all)}, nil
}

func (r *DocumentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.docs, id)
	for bid, b := range r.s.borrows {
		if b.DocumentID == id {
			delete(r.s.borrows, bid)
		}
	}
	return nil
}

func (r *DocumentRepo) CompleteIngestion(_ context.Context, id string, pages int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.Status != model.StatusProcessing {
		return repository.ErrNotFound
	}
	d.TotalPages = pages
	d.Status = model.StatusReady
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DocumentRepo) UpdateStatus(_ context.Context, id string, status model.DocumentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DocumentRepo) MarkFailed(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.Status != model.StatusProcessing {
		return repository.ErrNotFound
	}
	d.Status = model.StatusFailed
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DocumentRepo) FailStale(_ context.Context, before time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	n := 0
	for _, d := range r.s.docs {
		if d.Status == model.StatusProcessing && d.UpdatedAt.Before(before) {
			d.Status = model.StatusFailed
			d.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

type BorrowRepo struct{ s *Store }

var _ repository.BorrowRepository = (*BorrowRepo)(nil)

func (r *BorrowRepo) CreateIfAvailable(_ context.Context, b *model.Borrow) (*model.Borrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[b.DocumentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	active := 0
	for _, other := range r.s.borrows {
		if other.DocumentID != b.DocumentID || other.Status != model.BorrowBorrowed {
			continue
		}
		if other.DueDate.Before(b.BorrowDate) {
			other.Status = model.BorrowOverdue
			continue
		}
		if other.UserID == b.UserID {
			return nil, repository.ErrAlreadyBorrowed
		}
		active++
	}
	if active >= d.TotalCopies {
		return nil, repository.ErrCapacityExceeded
	}
	stored := *b
	r.s.borrows[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *BorrowRepo) FindActive(_ context.Context, userID, documentID string) (*model.Borrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b := r.active(userID, documentID); b != nil {
		out := *b
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *BorrowRepo) MarkOverdue(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.borrows[id]; ok && b.Status == model.BorrowBorrowed {
		b.Status = model.BorrowOverdue
	}
	return nil
}

func (r *BorrowRepo) MarkReturned(_ context.Context, documentID, userID string, at time.Time) (*model.Borrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.active(userID, documentID)
	if b == nil {
		return nil, repository.ErrNotFound
	}
	b.Status = model.BorrowReturned
	t := at
	b.ReturnDate = &t
	out := *b
	return &out, nil
}

func (r *BorrowRepo) ListByUser(_ context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Borrow], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mine := make([]model.Borrow, 0)
	for _, b := range r.s.borrows {
		if b.UserID == userID {
			mine = append(mine, *b)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].BorrowDate.Equal(mine[j].BorrowDate) {
			return mine[i].BorrowDate.After(mine[j].BorrowDate)
		}
		return mine[i].ID > mine[j].ID
	})
	return &repository.PageResult[model.Borrow]{Items: window(mine, pq), Total: len(mine)}, nil
}

// active returns the newest borrowed loan of the user for the document. Callers hold mu.
func (r *BorrowRepo) active(userID, documentID string) *model.Borrow {
	var found *model.Borrow
	for _, b := range r.s.borrows {
		if b.UserID != userID || b.DocumentID != documentID || b.Status != model.BorrowBorrowed {
			continue
		}
		if found == nil || b.BorrowDate.After(found.BorrowDate) {
			found = b
		}
	}
	return found
}

func window[T any](items []T, pq repository.PageQuery) []T {
	if pq.Offset >= len(items) {
		return []T{}
	}
	items = items[pq.Offset:]
	if pq.Limit > 0 && pq.Limit < len(items) {
		items = items[:pq.Limit]
	}
	return items
}
