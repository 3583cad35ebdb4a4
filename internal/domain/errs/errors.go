package errs

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrBanned is returned when the registrant is banned
	ErrBanned = errors.New("registrant is banned")

	// ErrTokenNotFound is returned when a one-shot token is missing or expired
	ErrTokenNotFound = errors.New("token not found")
)
