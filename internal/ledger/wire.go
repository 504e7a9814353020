package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Wire types for the ledger HTTP contract (versioned JSON). The transfer
// service client and the handler below share these shapes.

// MovementRequest asks the ledger to append one movement. The request id
// makes the call idempotent per (accountId, requestId).
type MovementRequest struct {
	RequestID string    `json:"requestId"`
	AccountID uuid.UUID `json:"accountId"`
	Amount    string    `json:"amount"`
	Direction string    `json:"direction"`
}

// MovementResponse is the movement as returned by the ledger API.
type MovementResponse struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"accountId"`
	Amount    string    `json:"amount"`
	Direction string    `json:"direction"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolveAccountResponse carries the account id for a resolved number.
type ResolveAccountResponse struct {
	AccountID uuid.UUID `json:"accountId"`
}

// ErrorResponse is the machine-readable failure body. FailureType matches the
// error taxonomy: VALIDATION, NOT_FOUND, UNAUTHORIZED.
type ErrorResponse struct {
	Message     string `json:"message"`
	FailureType string `json:"failureType"`
}
