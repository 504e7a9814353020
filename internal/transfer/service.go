// Package transfer implements the transfer coordinator: the client-facing
// saga step that debits the origin account remotely, records the transfer
// locally, and hands the completion event to the outbox.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/idempotency"
	"github.com/pedrobono/BankMore/internal/messaging"
	"github.com/pedrobono/BankMore/internal/outbox"
)

// Request is one transfer submission.
type Request struct {
	RequestID                string
	OriginAccountID          uuid.UUID
	DestinationAccountNumber string
	Amount                   domain.Amount
}

// Result is what a transfer submission returns. Duplicate is true when the
// request replayed a previously completed transfer.
type Result struct {
	TransferID uuid.UUID `json:"transferId"`
	CreatedAt  time.Time `json:"createdAt"`
	Duplicate  bool      `json:"-"`
}

// Repository persists transfers.
type Repository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
}

// OutboxRepository queues events for the relay.
type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.Event) error
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Coordinator orchestrates transfer creation.
type Coordinator struct {
	transfers   Repository
	outbox      OutboxRepository
	guard       idempotency.Store
	reservation *idempotency.Reservation
	ledger      LedgerClient
	tx          TxManager
	logger      *zap.Logger
}

// NewCoordinator creates a transfer coordinator.
func NewCoordinator(
	transfers Repository,
	outboxRepo OutboxRepository,
	guard idempotency.Store,
	reservation *idempotency.Reservation,
	ledger LedgerClient,
	tx TxManager,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		transfers:   transfers,
		outbox:      outboxRepo,
		guard:       guard,
		reservation: reservation,
		ledger:      ledger,
		tx:          tx,
		logger:      logger,
	}
}

// CreateTransfer runs the transfer saga step for one request. Replays of a
// completed request return the original result; a concurrent duplicate of an
// in-flight request fails with ErrConflict.
//
// The remote debit happens before the local commit, under the same request
// id. A crash after the debit but before the commit therefore leaves the
// system in a state where retrying the request is safe: the ledger treats
// the repeated debit as a duplicate no-op.
func (c *Coordinator) CreateTransfer(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	scope := req.OriginAccountID.String()

	stored, err := c.guard.Lookup(ctx, scope, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency record: %w", err)
	}
	if stored != nil {
		return replayResult(stored)
	}

	if c.reservation != nil {
		if err := c.reservation.Acquire(ctx, scope, req.RequestID); err != nil {
			if errors.Is(err, idempotency.ErrInFlight) {
				return nil, domain.ErrConflict
			}
			return nil, err
		}
		defer c.reservation.Release(ctx, scope, req.RequestID)
	}

	if _, err := c.ledger.ResolveAccountNumber(ctx, req.DestinationAccountNumber); err != nil {
		return nil, err
	}

	if err := c.ledger.Debit(ctx, req.OriginAccountID, req.RequestID, req.Amount); err != nil {
		return nil, err
	}

	transfer := domain.NewTransfer(req.OriginAccountID, req.DestinationAccountNumber, req.Amount)
	result := &Result{TransferID: transfer.ID, CreatedAt: transfer.CreatedAt}

	requestPayload, err := json.Marshal(map[string]string{
		"destinationAccountNumber": req.DestinationAccountNumber,
		"amount":                   req.Amount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	resultPayload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result payload: %w", err)
	}
	eventPayload, err := json.Marshal(messaging.TransferCompleted{
		RequestID:       req.RequestID,
		OriginAccountID: req.OriginAccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer-completed event: %w", err)
	}

	err = c.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := c.transfers.Create(ctx, transfer); err != nil {
			return err
		}
		if err := c.guard.Record(ctx, &idempotency.Record{
			Scope:          scope,
			RequestID:      req.RequestID,
			RequestPayload: requestPayload,
			ResultPayload:  resultPayload,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		event := outbox.NewEvent(messaging.TopicTransferCompleted, req.OriginAccountID, eventPayload)
		return c.outbox.Create(ctx, event)
	})
	if err != nil {
		if errors.Is(err, idempotency.ErrAlreadyExists) {
			// A concurrent duplicate committed first. Our debit was absorbed
			// by the ledger's own idempotency, so discard our transfer and
			// return the winner's stored result.
			winner, lookupErr := c.guard.Lookup(ctx, scope, req.RequestID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to look up winning duplicate: %w", lookupErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("idempotency record vanished for request %s", req.RequestID)
			}
			return replayResult(winner)
		}
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	c.logger.Info("transfer created",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("origin_account_id", req.OriginAccountID.String()),
		zap.String("request_id", req.RequestID))

	return result, nil
}

// validate rejects malformed submissions before any side effect.
func (c *Coordinator) validate(req Request) error {
	if req.RequestID == "" {
		return fmt.Errorf("%w: request id is required", domain.ErrValidation)
	}
	if req.OriginAccountID == uuid.Nil {
		return fmt.Errorf("%w: origin account id is required", domain.ErrValidation)
	}
	if req.DestinationAccountNumber == "" {
		return fmt.Errorf("%w: destination account number is required", domain.ErrValidation)
	}
	return req.Amount.Validate()
}

// replayResult reconstructs a Result from a stored idempotency record.
func replayResult(rec *idempotency.Record) (*Result, error) {
	var result Result
	if err := json.Unmarshal(rec.ResultPayload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored result: %w", err)
	}
	result.Duplicate = true
	return &result, nil
}
