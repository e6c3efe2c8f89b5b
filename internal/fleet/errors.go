package fleet

import "errors"

// Failure taxonomy for the maintenance engine. All are caller-visible and
// locally unrecoverable; nothing is retried internally. Wrap with %w so
// callers can test with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrInsufficientData = errors.New("insufficient data")
)
