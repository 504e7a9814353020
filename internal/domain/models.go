package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction indicates whether a movement credits or debits an account.
type Direction string

const (
	// DirectionCredit increases the account balance.
	DirectionCredit Direction = "C"

	// DirectionDebit decreases the account balance.
	DirectionDebit Direction = "D"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Account represents a checking account known to the ledger.
// Accounts are created and managed by an external account-management
// service; this system only reads them.
type Account struct {
	ID        uuid.UUID // Unique identifier of the account
	Number    string    // External account number used by clients
	OwnerID   uuid.UUID // Reference to the account holder
	CreatedAt time.Time // Timestamp when the account was created
}

// Movement is an immutable ledger entry against one account. The amount is
// always positive; the direction carries the sign. At most one movement may
// exist per (account id, request id) pair; that pair is the durable
// idempotency boundary of the ledger.
type Movement struct {
	ID        uuid.UUID // Unique identifier of the movement
	AccountID uuid.UUID // Account the movement applies to
	Amount    Amount    // Positive fixed-point amount
	Direction Direction // Credit or debit
	RequestID string    // Idempotency request identifier
	CreatedAt time.Time // Timestamp when the movement was recorded
}

// NewMovement creates a movement for the given account and request.
func NewMovement(accountID uuid.UUID, requestID string, amount Amount, direction Direction) *Movement {
	return &Movement{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Direction: direction,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}

// Transfer records a money transfer initiated from an origin account to a
// destination account number. At most one transfer may exist per
// (origin account id, request id) pair, enforced through the idempotency
// record committed atomically with the transfer row.
type Transfer struct {
	ID                       uuid.UUID // Unique identifier of the transfer
	OriginAccountID          uuid.UUID // Account that was debited
	DestinationAccountNumber string    // External number of the destination account
	Amount                   Amount    // Amount transferred
	CreatedAt                time.Time // Timestamp when the transfer was created
}

// NewTransfer creates a transfer record.
func NewTransfer(originAccountID uuid.UUID, destinationAccountNumber string, amount Amount) *Transfer {
	return &Transfer{
		ID:                       uuid.New(),
		OriginAccountID:          originAccountID,
		DestinationAccountNumber: destinationAccountNumber,
		Amount:                   amount,
		CreatedAt:                time.Now().UTC(),
	}
}

// FeeRecord is the fee assessed for one completed transfer. The request id is
// derived deterministically from the originating transfer's request id, so a
// redelivered transfer-completed event always maps to the same record.
type FeeRecord struct {
	ID        uuid.UUID // Unique identifier of the fee record
	AccountID uuid.UUID // Account the fee is charged to
	Amount    Amount    // Fee amount
	RequestID string    // Request id of the originating transfer
	CreatedAt time.Time // Timestamp when the fee was assessed
}

// NewFeeRecord creates a fee record for the given account and request.
func NewFeeRecord(accountID uuid.UUID, amount Amount, requestID string) *FeeRecord {
	return &FeeRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}
