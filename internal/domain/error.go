package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Configuration and validation
	ErrMissingCredential = errors.New("missing service credential")
	ErrNoValidInputs     = errors.New("no valid PDF or image files found")
	ErrNoPrompts         = errors.New("no prompts found")

	// Service errors
	ErrRateLimited   = errors.New("rate limited by document service")
	ErrEmptyResponse = errors.New("document service returned no text")
	ErrUnsupported   = errors.New("unsupported document type")

	// Coordination
	ErrLocked = errors.New("resource is locked by another run")
)
