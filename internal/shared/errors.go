package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict indicates a uniqueness rule would be violated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates a request failed domain validation.
	ErrInvalidInput = errors.New("invalid input")
)
