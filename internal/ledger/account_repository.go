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

// PostgresAccountRepository implements AccountRepository using PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgresAccountRepository.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// GetByID retrieves an account by its unique identifier.
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, number, owner_id, created_at
		FROM accounts
		WHERE id = $1
	`

	return r.scanAccount(db.ExecutorFromContext(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByNumber retrieves an account by its external account number.
func (r *PostgresAccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `
		SELECT id, number, owner_id, created_at
		FROM accounts
		WHERE number = $1
	`

	return r.scanAccount(db.ExecutorFromContext(ctx, r.pool).QueryRow(ctx, query, number))
}

func (r *PostgresAccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account

	err := row.Scan(&account.ID, &account.Number, &account.OwnerID, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}
