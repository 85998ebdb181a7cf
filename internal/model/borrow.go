package model

import "time"

// LoanPeriod is the fixed window between borrowing and the due date.
const LoanPeriod = 14 * 24 * time.Hour

// BorrowStatus is the lifecycle state of a loan.
type BorrowStatus string

const (
	BorrowBorrowed BorrowStatus = "borrowed"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

// Borrow is a time-bounded loan of one copy of a document to a user.
type Borrow struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	DocumentID string       `json:"document_id"`
	BorrowDate time.Time    `json:"borrow_date"`
	DueDate    time.Time    `json:"due_date"`
	ReturnDate *time.Time   `json:"return_date,omitempty"`
	Status     BorrowStatus `json:"status"`
}

// NewBorrow starts a loan at now, due exactly one LoanPeriod later.
func NewBorrow(id, userID, documentID string, now time.Time) *Borrow {
	return &Borrow{
		ID:         id,
		UserID:     userID,
		DocumentID: documentID,
		BorrowDate: now,
		DueDate:    now.Add(LoanPeriod),
		Status:     BorrowBorrowed,
	}
}

// Expired reports whether the loan is past its due date at now.
func (b *Borrow) Expired(now time.Time) bool {
	return now.After(b.DueDate)
}
