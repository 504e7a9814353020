// Package settlement closes the saga: it consumes fee-assessed events and
// collects the fee as a debit movement on the account ledger.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/messaging"
)

// Ledger is the movement-appending side of the account ledger.
type Ledger interface {
	AppendMovement(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error)
}

// Collector debits assessed fees from accounts.
type Collector struct {
	ledger Ledger
	logger *zap.Logger
}

// NewCollector creates a fee collector over the given ledger.
func NewCollector(ledger Ledger, logger *zap.Logger) *Collector {
	return &Collector{ledger: ledger, logger: logger}
}

// HandleFeeAssessed processes one fee-assessed delivery. Both a fresh debit
// and a duplicate are terminal successes: in either case the movement
// exists, which is exactly what a redelivered event requires.
func (c *Collector) HandleFeeAssessed(ctx context.Context, body []byte) error {
	event, err := messaging.DecodeFeeAssessed(body)
	if err != nil {
		return err
	}

	movement, err := c.ledger.AppendMovement(ctx,
		event.AccountID, event.FeeRequestID, domain.Amount(event.FeeAmount), domain.DirectionDebit)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			c.logger.Info("fee already collected, skipping",
				zap.String("fee_request_id", event.FeeRequestID))
			return nil
		}
		return fmt.Errorf("failed to collect fee: %w", err)
	}

	c.logger.Info("fee collected",
		zap.String("movement_id", movement.ID.String()),
		zap.String("account_id", event.AccountID.String()),
		zap.String("fee_request_id", event.FeeRequestID),
		zap.String("amount", event.FeeAmount))

	return nil
}
