// Package outbox implements a transactional outbox: events are inserted in
// the same database transaction as the domain change they announce, and a
// background relay publishes them to the broker afterwards. A crash between
// commit and publish therefore delays the event instead of losing it.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses.
const (
	StatusPending   = "PENDING"
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

// Event is one pending or settled outbox row.
type Event struct {
	ID         uuid.UUID
	Topic      string
	AccountID  uuid.UUID
	Payload    []byte
	Status     string
	Attempts   int
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// NewEvent builds a pending event for the given topic, keyed by account id.
func NewEvent(topic string, accountID uuid.UUID, payload []byte) *Event {
	return &Event{
		ID:        uuid.New(),
		Topic:     topic,
		AccountID: accountID,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Schema creates the outbox table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		topic VARCHAR(128) NOT NULL,
		account_id UUID NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMP WITH TIME ZONE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (created_at) WHERE status = 'PENDING'`,
}
