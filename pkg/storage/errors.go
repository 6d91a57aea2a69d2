package storage

import "errors"

// ErrNotFound is returned by Download and Delete when no blob exists at the
// key. Callers translate it into their own missing-file error.
var ErrNotFound = errors.New("blob not found")

// Key validation errors.
var (
	ErrEmptyKey   = errors.New("storage key must not be empty")
	ErrInvalidKey = errors.New("storage key must be relative without parent segments")
)
