package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist (or, for
	// sessions, has outlived its TTL).
	ErrNotFound = errors.New("store: not found")

	// ErrStageConflict is returned by session compare-and-swap operations
	// when the stored stage no longer matches the expected one.
	ErrStageConflict = errors.New("store: session stage changed concurrently")

	// ErrDuplicate is returned when a unique key (username, room_id) is taken.
	ErrDuplicate = errors.New("store: duplicate key")
)
