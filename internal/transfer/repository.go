package transfer

import (
	"context"
	"fmt"

	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/domain"
)

// Schema creates the transfer table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY,
		origin_account_id UUID NOT NULL,
		destination_account_number VARCHAR(32) NOT NULL,
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_origin_account_id ON transfers (origin_account_id)`,
}

// PostgresRepository persists transfers. Create joins any transaction
// carried in the context.
type PostgresRepository struct {
	pool *db.Pool
}

// NewPostgresRepository creates a new transfer repository.
func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a transfer.
func (r *PostgresRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	exec := db.ExecutorFromContext(ctx, r.pool.Pool)

	query := `
		INSERT INTO transfers (id, origin_account_id, destination_account_number, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := exec.Exec(ctx, query,
		transfer.ID, transfer.OriginAccountID, transfer.DestinationAccountNumber,
		transfer.Amount.String(), transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}
