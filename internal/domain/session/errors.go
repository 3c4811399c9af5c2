package session

import "errors"

var (
	// ErrSessionNotFound indicates no document exists for the code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
)
