package store

import "errors"

var (
	// ErrNotFound is returned when a key doesn't exist.
	ErrNotFound = errors.New("grove: not found")

	// ErrExists is returned by Inserter.Insert when the key already exists.
	ErrExists = errors.New("grove: key already exists")

	// ErrPartialWrite wraps the failures of an Update batch.
	ErrPartialWrite = errors.New("grove: partial write")

	// ErrInvalidRange is returned for negative pagination arguments.
	ErrInvalidRange = errors.New("grove: invalid range")
)
