package domain

import "errors"

// Publish validation and readiness failures. These are rejected locally,
// before any store write is attempted, and are always recoverable.
var (
	ErrEmptyTitle   = errors.New("title must not be empty")
	ErrEmptyContent = errors.New("content must not be empty")
	ErrBadLanguage  = errors.New("unsupported post language")

	// ErrNotReady gates every write: the identity must be resolved and the
	// store handle initialized before a publish can proceed.
	ErrNotReady = errors.New("not ready to publish: sign in and wait for the store to initialize")
)
