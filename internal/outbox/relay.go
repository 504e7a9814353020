package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

// Publisher is the broker side of the relay. The messaging producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, accountID uuid.UUID, body []byte) error
}

// Repository is the storage side of the relay.
type Repository interface {
	ListPending(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error
}

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	// PollInterval is how long the relay sleeps when no events are pending.
	PollInterval time.Duration
	// BatchSize caps how many events one poll drains.
	BatchSize int
	// MaxAttempts is the rejection budget per event before it is parked
	// as FAILED. Only broker rejections count; transport failures (broker
	// unreachable, confirm timeout) leave the event PENDING for the next
	// poll.
	MaxAttempts int
}

// DefaultRelayConfig returns the settings the services ship with.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval: time.Second,
		BatchSize:    50,
		MaxAttempts:  10,
	}
}

// Relay drains pending outbox events into the broker.
type Relay struct {
	repo      Repository
	publisher Publisher
	cfg       RelayConfig
	logger    *zap.Logger
}

// NewRelay creates a relay over the given repository and publisher.
func NewRelay(repo Repository, publisher Publisher, cfg RelayConfig, logger *zap.Logger) *Relay {
	return &Relay{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run polls for pending events until ctx is cancelled. Publish failures
// never stop the loop: rejections are recorded per event, transient broker
// outages end the batch and are retried on the next poll.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.drain(ctx); err != nil {
			r.logger.Warn("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain publishes one batch of pending events.
func (r *Relay) drain(ctx context.Context) error {
	events, err := r.repo.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := r.publisher.Publish(ctx, event.Topic, event.AccountID, event.Payload); err != nil {
			if errors.Is(err, domain.ErrTransientUpstream) {
				// Broker outage affects the whole batch; leave every
				// pending event untouched and let the next poll retry.
				r.logger.Warn("broker unavailable, outbox events stay pending",
					zap.String("event_id", event.ID.String()),
					zap.Error(err))
				return err
			}
			r.logger.Warn("broker rejected outbox event",
				zap.String("event_id", event.ID.String()),
				zap.String("topic", event.Topic),
				zap.Int("attempts", event.Attempts+1),
				zap.Error(err))
			if markErr := r.repo.MarkAttemptFailed(ctx, event.ID, r.cfg.MaxAttempts); markErr != nil {
				r.logger.Error("failed to record outbox attempt", zap.Error(markErr))
			}
			continue
		}

		if err := r.repo.MarkPublished(ctx, event.ID); err != nil {
			// The event will be re-published on the next poll; consumers
			// must tolerate the duplicate, which the idempotency guard
			// already guarantees.
			r.logger.Error("failed to mark outbox event published", zap.Error(err))
		}
	}

	return nil
}
