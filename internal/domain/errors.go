package domain

import "errors"

var (
	// ErrAccountNotFound is returned when an account is unknown to the ledger.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned when an amount is malformed or not positive.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrValidation is returned when a request is structurally malformed,
	// such as a missing request id or destination.
	ErrValidation = errors.New("invalid request")

	// ErrUnauthorized is returned when the caller's token is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateRequest is returned when a durable effect for the same
	// (scope, request id) already exists. Callers treat it as a success
	// replay, not a failure: the existing result is the result.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrConflict is returned when an identical request is currently in
	// flight and has not yet produced a durable result.
	ErrConflict = errors.New("duplicate request currently processing")

	// ErrTransientUpstream is returned when a remote collaborator or the
	// broker is unreachable. Safe to retry with backoff.
	ErrTransientUpstream = errors.New("upstream temporarily unavailable")
)
