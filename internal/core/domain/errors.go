package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested service does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record with the same ID is already stored
	ErrAlreadyExists = errors.New("already exists")

	// ErrLocked indicates another execution context holds the service lock
	ErrLocked = errors.New("locked")

	// ErrOperationInProgress indicates a conflicting operation is already running
	ErrOperationInProgress = errors.New("there is an operation in progress")

	// ErrInvalidInput indicates the input is invalid (e.g. a service without an ID)
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates the broker reported an unknown operation state
	ErrInvalidState = errors.New("invalid operation state")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
