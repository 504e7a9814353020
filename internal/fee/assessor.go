package fee

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

// feeScope is the idempotency scope shared by all fee assessments.
const feeScope = "fee"

// feeNamespace makes fee request ids a pure function of the transfer's
// request id, so a redelivered transfer-completed event produces the same
// downstream key and therefore the same, duplicate-safe ledger effect.
var feeNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("fee.bankmore"))

// FeeRequestID derives the deterministic ledger request id for a transfer.
func FeeRequestID(transferRequestID string) string {
	return uuid.NewSHA1(feeNamespace, []byte(transferRequestID)).String()
}

// Repository persists fee records.
type Repository interface {
	Create(ctx context.Context, record *domain.FeeRecord) error
}

// OutboxRepository queues fee-assessed events for the relay.
type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.Event) error
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Assessor consumes transfer-completed events and records one fee per
// settled transfer.
type Assessor struct {
	records  Repository
	outbox   OutboxRepository
	guard    idempotency.Store
	schedule Schedule
	tx       TxManager
	logger   *zap.Logger
}

// NewAssessor creates a fee assessor.
func NewAssessor(
	records Repository,
	outboxRepo OutboxRepository,
	guard idempotency.Store,
	schedule Schedule,
	tx TxManager,
	logger *zap.Logger,
) *Assessor {
	return &Assessor{
		records:  records,
		outbox:   outboxRepo,
		guard:    guard,
		schedule: schedule,
		tx:       tx,
		logger:   logger,
	}
}

// HandleTransferCompleted processes one transfer-completed delivery.
// Returning nil acknowledges the delivery; redeliveries of an already
// assessed transfer are acknowledged without any new effect.
func (a *Assessor) HandleTransferCompleted(ctx context.Context, body []byte) error {
	event, err := messaging.DecodeTransferCompleted(body)
	if err != nil {
		return err
	}

	stored, err := a.guard.Lookup(ctx, feeScope, event.RequestID)
	if err != nil {
		return fmt.Errorf("failed to look up idempotency record: %w", err)
	}
	if stored != nil {
		a.logger.Info("fee already assessed, skipping",
			zap.String("request_id", event.RequestID))
		return nil
	}

	amount := a.schedule.FeeFor(TransferInfo{RequestID: event.RequestID})
	feeRequestID := FeeRequestID(event.RequestID)
	record := domain.NewFeeRecord(event.OriginAccountID, amount, feeRequestID)

	assessed := messaging.FeeAssessed{
		AccountID:    event.OriginAccountID,
		FeeAmount:    amount.String(),
		FeeRequestID: feeRequestID,
	}
	eventPayload, err := json.Marshal(assessed)
	if err != nil {
		return fmt.Errorf("failed to marshal fee-assessed event: %w", err)
	}
	resultPayload, err := json.Marshal(map[string]string{
		"feeRecordId":  record.ID.String(),
		"feeRequestId": feeRequestID,
		"feeAmount":    amount.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result payload: %w", err)
	}

	err = a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := a.records.Create(ctx, record); err != nil {
			return err
		}
		if err := a.guard.Record(ctx, &idempotency.Record{
			Scope:          feeScope,
			RequestID:      event.RequestID,
			RequestPayload: body,
			ResultPayload:  resultPayload,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		return a.outbox.Create(ctx, outbox.NewEvent(messaging.TopicFeeAssessed, event.OriginAccountID, eventPayload))
	})
	if err != nil {
		// Either boundary tripping means another delivery of this event
		// already assessed the fee. Acknowledge without a new effect.
		if errors.Is(err, domain.ErrDuplicateRequest) || errors.Is(err, idempotency.ErrAlreadyExists) {
			a.logger.Info("concurrent duplicate fee assessment, skipping",
				zap.String("request_id", event.RequestID))
			return nil
		}
		return fmt.Errorf("failed to commit fee assessment: %w", err)
	}

	a.logger.Info("fee assessed",
		zap.String("request_id", event.RequestID),
		zap.String("fee_request_id", feeRequestID),
		zap.String("account_id", event.OriginAccountID.String()),
		zap.String("amount", amount.String()))

	return nil
}
