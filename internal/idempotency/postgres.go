package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedrobono/BankMore/internal/db"
)

// Schema contains the additive migration statements for the idempotency table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS idempotency (
		scope VARCHAR(64) NOT NULL,
		request_id VARCHAR(255) NOT NULL,
		request_payload JSONB,
		result_payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (scope, request_id)
	);`,
}

// PostgresStore implements Store on PostgreSQL. Uniqueness is enforced by the
// primary key, not by a read-then-write check, so concurrent duplicates
// resolve deterministically to one winner.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Lookup returns the stored record for (scope, requestID), or nil when absent.
func (s *PostgresStore) Lookup(ctx context.Context, scope, requestID string) (*Record, error) {
	query := `
		SELECT scope, request_id, request_payload, result_payload, created_at
		FROM idempotency
		WHERE scope = $1 AND request_id = $2
	`

	var rec Record

	row := db.ExecutorFromContext(ctx, s.pool).QueryRow(ctx, query, scope, requestID)

	err := row.Scan(&rec.Scope, &rec.RequestID, &rec.RequestPayload, &rec.ResultPayload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency record: %w", err)
	}

	return &rec, nil
}

// Record stores rec, joining the caller's transaction when one is present in
// the context. A primary key violation maps to ErrAlreadyExists.
func (s *PostgresStore) Record(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO idempotency (scope, request_id, request_payload, result_payload)
		VALUES ($1, $2, $3, $4)
	`

	_, err := db.ExecutorFromContext(ctx, s.pool).Exec(ctx, query,
		rec.Scope,
		rec.RequestID,
		rec.RequestPayload,
		rec.ResultPayload,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}

	return nil
}
