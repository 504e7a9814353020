package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

type fakeLedger struct {
	appendFunc func(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error)
}

func (f *fakeLedger) AppendMovement(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error) {
	return f.appendFunc(ctx, accountID, requestID, amount, direction)
}

func feeAssessedBody(accountID uuid.UUID) []byte {
	return []byte(`{"accountId":"` + accountID.String() + `","feeAmount":"2.00","feeRequestId":"fee-r1"}`)
}

func TestHandleFeeAssessedDebitsAccount(t *testing.T) {
	accountID := uuid.New()

	var gotRequestID string
	var gotDirection domain.Direction
	ledger := &fakeLedger{
		appendFunc: func(_ context.Context, gotAccount uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error) {
			if gotAccount != accountID {
				t.Errorf("account = %s, want %s", gotAccount, accountID)
			}
			if amount != "2.00" {
				t.Errorf("amount = %s, want 2.00", amount)
			}
			gotRequestID = requestID
			gotDirection = direction
			return domain.NewMovement(gotAccount, requestID, amount, direction), nil
		},
	}
	collector := NewCollector(ledger, zap.NewNop())

	if err := collector.HandleFeeAssessed(context.Background(), feeAssessedBody(accountID)); err != nil {
		t.Fatalf("HandleFeeAssessed failed: %v", err)
	}
	if gotRequestID != "fee-r1" {
		t.Errorf("request id = %q, want the event's fee request id", gotRequestID)
	}
	if gotDirection != domain.DirectionDebit {
		t.Errorf("direction = %q, want debit", gotDirection)
	}
}

func TestHandleFeeAssessedDuplicateIsTerminalSuccess(t *testing.T) {
	ledger := &fakeLedger{
		appendFunc: func(_ context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error) {
			existing := domain.NewMovement(accountID, requestID, amount, direction)
			return existing, domain.ErrDuplicateRequest
		},
	}
	collector := NewCollector(ledger, zap.NewNop())

	if err := collector.HandleFeeAssessed(context.Background(), feeAssessedBody(uuid.New())); err != nil {
		t.Errorf("duplicate movement must acknowledge cleanly, got: %v", err)
	}
}

func TestHandleFeeAssessedRetryableFailures(t *testing.T) {
	ledger := &fakeLedger{
		appendFunc: func(context.Context, uuid.UUID, string, domain.Amount, domain.Direction) (*domain.Movement, error) {
			return nil, errors.New("database unavailable")
		},
	}
	collector := NewCollector(ledger, zap.NewNop())

	if err := collector.HandleFeeAssessed(context.Background(), feeAssessedBody(uuid.New())); err == nil {
		t.Error("ledger failure must propagate so the delivery stays unacked")
	}
}

func TestHandleFeeAssessedRejectsMalformedEvent(t *testing.T) {
	collector := NewCollector(&fakeLedger{}, zap.NewNop())

	if err := collector.HandleFeeAssessed(context.Background(), []byte(`{"accountId":"nope"}`)); err == nil {
		t.Error("malformed event must fail")
	}
}
