package playerdb

import "errors"

// Sentinel errors for the player repository layer.
var (
	// ErrNotFound indicates the requested player does not exist.
	ErrNotFound = errors.New("player not found")

	// ErrInvalidSort indicates a sort key with no backing column.
	ErrInvalidSort = errors.New("invalid sort key")
)
