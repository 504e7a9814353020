// Package ledger implements the append-only account movement store and the
// settlement of assessed fees.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

// MovementRepository persists movements. Insert must enforce the uniqueness
// of (account id, request id) at the storage layer and return
// domain.ErrDuplicateRequest on violation.
type MovementRepository interface {
	Insert(ctx context.Context, movement *domain.Movement) error
	GetByAccountAndRequestID(ctx context.Context, accountID uuid.UUID, requestID string) (*domain.Movement, error)
}

// AccountRepository reads accounts. Accounts are owned by an external
// account-management service and are never written here.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
}

// Service is the movement ledger. Appending a movement is idempotent per
// (account id, request id): the unique constraint on the movement table
// resolves concurrent duplicates to one winner, and the losers get the
// winner's row back.
type Service struct {
	movements MovementRepository
	accounts  AccountRepository
	logger    *zap.Logger
}

// NewService creates a ledger Service.
func NewService(movements MovementRepository, accounts AccountRepository, logger *zap.Logger) *Service {
	return &Service{movements: movements, accounts: accounts, logger: logger}
}

// AppendMovement records a movement against an account.
//
// Returns the new movement on success. When a movement for the same
// (accountID, requestID) already exists the existing movement is returned
// together with domain.ErrDuplicateRequest, which is a success replay rather
// than a failure.
// Fails with domain.ErrInvalidAmount for non-positive amounts,
// domain.ErrValidation for a malformed direction or missing request id, and
// domain.ErrAccountNotFound for unknown accounts.
func (s *Service) AppendMovement(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount, direction domain.Direction) (*domain.Movement, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	if !direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrValidation, direction)
	}

	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", domain.ErrValidation)
	}

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	movement := domain.NewMovement(accountID, requestID, amount, direction)

	err := s.movements.Insert(ctx, movement)
	if err == nil {
		s.logger.Info("movement recorded",
			zap.String("movement_id", movement.ID.String()),
			zap.String("account_id", accountID.String()),
			zap.String("request_id", requestID),
			zap.String("direction", string(direction)),
			zap.String("amount", amount.String()))

		return movement, nil
	}

	if !errors.Is(err, domain.ErrDuplicateRequest) {
		return nil, err
	}

	existing, lookupErr := s.movements.GetByAccountAndRequestID(ctx, accountID, requestID)
	if lookupErr != nil {
		return nil, fmt.Errorf("failed to load existing movement after duplicate insert: %w", lookupErr)
	}

	s.logger.Info("duplicate movement request, returning existing movement",
		zap.String("account_id", accountID.String()),
		zap.String("request_id", requestID))

	return existing, domain.ErrDuplicateRequest
}

// ResolveAccountNumber maps an external account number to the account id.
func (s *Service) ResolveAccountNumber(ctx context.Context, number string) (uuid.UUID, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return uuid.Nil, err
	}

	return account.ID, nil
}
