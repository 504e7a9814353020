// Package idempotency enforces at-most-once semantics for request handling.
//
// The durable Store is the single source of truth for "has this request
// already completed". Callers must Lookup before performing any externally
// visible effect, perform the effect, then Record; when Record reports
// ErrAlreadyExists a concurrent duplicate won the race and the caller must
// discard its own result and return the stored one instead.
//
// The Reservation is a short-lived in-flight marker that lets a concurrent
// duplicate be rejected with a conflict instead of racing all the way to the
// durable store.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyExists is returned by Record when a result for the same
	// (scope, request id) was already stored. The stored record is never
	// overwritten.
	ErrAlreadyExists = errors.New("idempotency record already exists")

	// ErrInFlight is returned by Acquire when an identical request is
	// currently being processed.
	ErrInFlight = errors.New("request already in flight")
)

// Record is one completed request: the key, the original request payload and
// the result that must be replayed to duplicate callers.
type Record struct {
	Scope          string
	RequestID      string
	RequestPayload []byte
	ResultPayload  []byte
	CreatedAt      time.Time
}

// Store persists idempotency records. Implementations must make Record
// write-once: a second write for an existing key fails with ErrAlreadyExists
// and leaves the original untouched.
type Store interface {
	// Lookup returns the stored record for (scope, requestID), or nil when
	// the request has not completed yet.
	Lookup(ctx context.Context, scope, requestID string) (*Record, error)

	// Record stores the record, failing with ErrAlreadyExists when a record
	// for the same key is already present.
	Record(ctx context.Context, rec *Record) error
}
