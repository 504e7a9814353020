package fee

import (
	"context"
	"fmt"

	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/domain"
)

// Schema creates the fee record table. The unique request id is a second
// idempotency boundary under the guard: even if the guard's record were
// lost, a duplicate fee insert would still fail here.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS fee_records (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL,
		amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
		request_id VARCHAR(64) NOT NULL UNIQUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fee_records_account_id ON fee_records (account_id)`,
}

// PostgresRepository persists fee records. Create joins any transaction
// carried in the context.
type PostgresRepository struct {
	pool *db.Pool
}

// NewPostgresRepository creates a new fee repository.
func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a fee record. A duplicate request id maps to
// domain.ErrDuplicateRequest.
func (r *PostgresRepository) Create(ctx context.Context, record *domain.FeeRecord) error {
	exec := db.ExecutorFromContext(ctx, r.pool.Pool)

	query := `
		INSERT INTO fee_records (id, account_id, amount, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := exec.Exec(ctx, query,
		record.ID, record.AccountID, record.Amount.String(), record.RequestID, record.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to create fee record: %w", err)
	}

	return nil
}
