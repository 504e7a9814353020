package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

type fakeMovementRepository struct {
	insertFunc func(ctx context.Context, movement *domain.Movement) error
	getFunc    func(ctx context.Context, accountID uuid.UUID, requestID string) (*domain.Movement, error)
}

func (f *fakeMovementRepository) Insert(ctx context.Context, movement *domain.Movement) error {
	return f.insertFunc(ctx, movement)
}

func (f *fakeMovementRepository) GetByAccountAndRequestID(ctx context.Context, accountID uuid.UUID, requestID string) (*domain.Movement, error) {
	return f.getFunc(ctx, accountID, requestID)
}

type fakeAccountRepository struct {
	byIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	byNumberFunc func(ctx context.Context, number string) (*domain.Account, error)
}

func (f *fakeAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return f.byIDFunc(ctx, id)
}

func (f *fakeAccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return f.byNumberFunc(ctx, number)
}

func knownAccount(id uuid.UUID) *fakeAccountRepository {
	return &fakeAccountRepository{
		byIDFunc: func(_ context.Context, got uuid.UUID) (*domain.Account, error) {
			if got != id {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.Account{ID: id, Number: "1234"}, nil
		},
		byNumberFunc: func(_ context.Context, number string) (*domain.Account, error) {
			if number != "1234" {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.Account{ID: id, Number: "1234"}, nil
		},
	}
}

func TestAppendMovementSuccess(t *testing.T) {
	accountID := uuid.New()
	var inserted *domain.Movement

	movements := &fakeMovementRepository{
		insertFunc: func(_ context.Context, movement *domain.Movement) error {
			inserted = movement
			return nil
		},
	}
	service := NewService(movements, knownAccount(accountID), zap.NewNop())

	movement, err := service.AppendMovement(context.Background(), accountID, "r1", "100.00", domain.DirectionDebit)
	if err != nil {
		t.Fatalf("AppendMovement failed: %v", err)
	}

	if inserted == nil {
		t.Fatal("movement was not inserted")
	}
	if movement.AccountID != accountID || movement.RequestID != "r1" {
		t.Errorf("movement = %+v, want account %s request r1", movement, accountID)
	}
	if movement.Direction != domain.DirectionDebit {
		t.Errorf("direction = %q, want D", movement.Direction)
	}
}

func TestAppendMovementDuplicateReturnsExisting(t *testing.T) {
	accountID := uuid.New()
	existing := domain.NewMovement(accountID, "r1", "100.00", domain.DirectionDebit)

	movements := &fakeMovementRepository{
		insertFunc: func(context.Context, *domain.Movement) error {
			return domain.ErrDuplicateRequest
		},
		getFunc: func(_ context.Context, gotAccount uuid.UUID, gotRequest string) (*domain.Movement, error) {
			if gotAccount != accountID || gotRequest != "r1" {
				t.Errorf("looked up (%s, %s), want (%s, r1)", gotAccount, gotRequest, accountID)
			}
			return existing, nil
		},
	}
	service := NewService(movements, knownAccount(accountID), zap.NewNop())

	movement, err := service.AppendMovement(context.Background(), accountID, "r1", "100.00", domain.DirectionDebit)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("error = %v, want ErrDuplicateRequest", err)
	}
	if movement != existing {
		t.Error("duplicate must return the existing movement, not a new one")
	}
}

func TestAppendMovementValidation(t *testing.T) {
	accountID := uuid.New()
	movements := &fakeMovementRepository{
		insertFunc: func(context.Context, *domain.Movement) error {
			t.Error("insert must not be called for invalid input")
			return nil
		},
	}
	service := NewService(movements, knownAccount(accountID), zap.NewNop())

	tests := []struct {
		name      string
		accountID uuid.UUID
		requestID string
		amount    domain.Amount
		direction domain.Direction
		wantErr   error
	}{
		{name: "zero amount", accountID: accountID, requestID: "r1", amount: "0.00", direction: domain.DirectionDebit, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", accountID: accountID, requestID: "r1", amount: "-1", direction: domain.DirectionDebit, wantErr: domain.ErrInvalidAmount},
		{name: "bad direction", accountID: accountID, requestID: "r1", amount: "1.00", direction: "X", wantErr: domain.ErrValidation},
		{name: "missing request id", accountID: accountID, requestID: "", amount: "1.00", direction: domain.DirectionCredit, wantErr: domain.ErrValidation},
		{name: "unknown account", accountID: uuid.New(), requestID: "r1", amount: "1.00", direction: domain.DirectionDebit, wantErr: domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.AppendMovement(context.Background(), tt.accountID, tt.requestID, tt.amount, tt.direction)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveAccountNumber(t *testing.T) {
	accountID := uuid.New()
	service := NewService(&fakeMovementRepository{}, knownAccount(accountID), zap.NewNop())

	got, err := service.ResolveAccountNumber(context.Background(), "1234")
	if err != nil {
		t.Fatalf("ResolveAccountNumber failed: %v", err)
	}
	if got != accountID {
		t.Errorf("resolved id = %s, want %s", got, accountID)
	}

	_, err = service.ResolveAccountNumber(context.Background(), "9999")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}
