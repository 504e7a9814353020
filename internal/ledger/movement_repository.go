package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/domain"
)

// Schema contains the additive migration statements for the ledger tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		number VARCHAR(32) NOT NULL UNIQUE,
		owner_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS movements (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		direction CHAR(1) NOT NULL CHECK (direction IN ('C', 'D')),
		request_id VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (account_id, request_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_movements_account_id ON movements(account_id);`,
}

// PostgresMovementRepository implements MovementRepository using PostgreSQL.
type PostgresMovementRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMovementRepository creates a new PostgresMovementRepository.
func NewPostgresMovementRepository(pool *pgxpool.Pool) *PostgresMovementRepository {
	return &PostgresMovementRepository{pool: pool}
}

// Insert persists a movement. The UNIQUE (account_id, request_id) constraint
// is the authoritative idempotency mechanism: a violation maps to
// domain.ErrDuplicateRequest and the row is left untouched.
func (r *PostgresMovementRepository) Insert(ctx context.Context, m *domain.Movement) error {
	query := `
		INSERT INTO movements (id, account_id, amount, direction, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := db.ExecutorFromContext(ctx, r.pool).Exec(ctx, query,
		m.ID,
		m.AccountID,
		m.Amount.String(),
		string(m.Direction),
		m.RequestID,
		m.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	return nil
}

// GetByAccountAndRequestID returns the movement recorded for the pair, or an
// error when none exists.
func (r *PostgresMovementRepository) GetByAccountAndRequestID(ctx context.Context, accountID uuid.UUID, requestID string) (*domain.Movement, error) {
	query := `
		SELECT id, account_id, amount, direction, request_id, created_at
		FROM movements
		WHERE account_id = $1 AND request_id = $2
	`

	var (
		m         domain.Movement
		amount    string
		direction string
	)

	row := db.ExecutorFromContext(ctx, r.pool).QueryRow(ctx, query, accountID, requestID)

	err := row.Scan(&m.ID, &m.AccountID, &amount, &direction, &m.RequestID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("movement not found for account %s request %s", accountID, requestID)
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}

	m.Amount = domain.Amount(amount)
	m.Direction = domain.Direction(direction)

	return &m, nil
}
