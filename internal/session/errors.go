package session

import "errors"

var (
	// ErrPersistence wraps every failed read, write or delete against the Port.
	ErrPersistence = errors.New("session persistence failed")
	// ErrSessionValidation means there is no valid active session to operate on.
	ErrSessionValidation = errors.New("session validation failed")
	ErrNoSession         = errors.New("no active session")
	ErrInvalidEntity     = errors.New("invalid entity")
)
