// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.
package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCapacityExceeded is returned when every copy of a document is on loan.
	ErrCapacityExceeded = errors.New("no copies available")
	// ErrAlreadyBorrowed is returned when the user already holds an active loan of the document.
	ErrAlreadyBorrowed = errors.New("document already borrowed by user")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
