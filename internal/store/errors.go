package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a row cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("store: duplicate entry")

	// ErrFilterInvalid is returned when a query names an unknown field or
	// operator, or compares incompatible values.
	ErrFilterInvalid = errors.New("store: invalid filter")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
