package domain

import "errors"

var (
	// ErrNotFound means the flashcard does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable wraps persistence failures the caller may retry.
	ErrUnavailable = errors.New("storage unavailable")
)
