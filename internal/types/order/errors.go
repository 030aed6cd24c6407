package order

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrConflict is returned by the store when a compare-and-swap write
	// matched no row: another writer got there first.
	ErrConflict = errors.New("order state conflict")
)
