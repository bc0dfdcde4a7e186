package memory

import "errors"

var (
	// ErrConnection is returned when the index's backing store fails.
	ErrConnection = errors.New("memory index connection failed")

	// ErrUnknownKind is returned when a query names a kind the index
	// doesn't hold.
	ErrUnknownKind = errors.New("unknown memory kind")
)
