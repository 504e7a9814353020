package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pedrobono/BankMore/internal/db"
)

// PostgresRepository persists outbox events. Create joins any transaction
// carried in the context, which is how an event becomes atomic with the
// domain change it announces.
type PostgresRepository struct {
	pool *db.Pool
}

// NewPostgresRepository creates a new outbox repository.
func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a pending event.
func (r *PostgresRepository) Create(ctx context.Context, event *Event) error {
	exec := db.ExecutorFromContext(ctx, r.pool.Pool)

	query := `
		INSERT INTO outbox (id, topic, account_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := exec.Exec(ctx, query,
		event.ID, event.Topic, event.AccountID, event.Payload,
		event.Status, event.Attempts, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	return nil
}

// ListPending returns up to limit pending events, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT id, topic, account_id, payload, status, attempts, created_at, resolved_at
		FROM outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.pool.Pool.Query(ctx, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		err := rows.Scan(&event.ID, &event.Topic, &event.AccountID, &event.Payload,
			&event.Status, &event.Attempts, &event.CreatedAt, &event.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished settles an event after the broker confirmed it.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox
		SET status = $1, attempts = attempts + 1, resolved_at = NOW()
		WHERE id = $2
	`
	_, err := r.pool.Pool.Exec(ctx, query, StatusPublished, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}

// MarkAttemptFailed records a failed publish attempt. Once attempts reach
// maxAttempts the event is parked as FAILED and no longer relayed.
func (r *PostgresRepository) MarkAttemptFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END,
		    resolved_at = CASE WHEN attempts + 1 >= $1 THEN NOW() ELSE resolved_at END
		WHERE id = $3
	`
	_, err := r.pool.Pool.Exec(ctx, query, maxAttempts, StatusFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox attempt failed: %w", err)
	}
	return nil
}
