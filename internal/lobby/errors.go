package lobby

import "errors"

// Errors reported to callers. All are recoverable and map onto distinct client responses.
var (
	ErrNotFound     = errors.New("lobby not found")
	ErrForbidden    = errors.New("operation not allowed for the current user")
	ErrInvalidState = errors.New("operation not allowed in the current lobby state")
	ErrFull         = errors.New("lobby is full")
	ErrInvalidInput = errors.New("invalid input")
)

// Errors returned by Store implementations.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrVersionConflict = errors.New("lobby was modified concurrently")
)
