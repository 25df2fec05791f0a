package domain

import "errors"

// Error taxonomy shared by the chat core and its collaborators.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrMismatch       = errors.New("passwords do not match")
	ErrServiceFailure = errors.New("service failure")
	ErrOutOfRange     = errors.New("index out of range")
	ErrInvalidRating  = errors.New("invalid rating")

	// ErrAuthRequired means an identity must be established before the operation.
	ErrAuthRequired = errors.New("authentication required")
	// ErrBusy means a submission is already in flight.
	ErrBusy = errors.New("submission already pending")
)
