package storage

import "errors"

var (
	// ErrNotFound is returned by a repository Get when no row matches.
	ErrNotFound = errors.New("storage: entity not found")
	// ErrConflict names a conflicting write. No repository method returns it:
	// layout creation and activation serialize on row locks, and a unique
	// index violation surfaces as a wrapped database error.
	ErrConflict = errors.New("storage: conflicting write")
)
