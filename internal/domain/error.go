package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrStoreUnavailable = errors.New("job store unavailable")
	ErrJobTerminal      = errors.New("job already reached a terminal state")
	ErrStreamTruncated  = errors.New("generation stream ended unexpectedly")
	ErrResultNotReady   = errors.New("result not available yet")
	ErrPromptTooLarge   = errors.New("prompt exceeds token limit")
)
