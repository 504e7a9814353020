package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reservationPrefix = "idempotency:v1:"

// Reservation marks a request as in flight in Redis so that a concurrent
// duplicate is rejected with ErrInFlight instead of executing the effect a
// second time. The marker expires on its own after the TTL; the durable Store
// answers for completed requests from then on.
type Reservation struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReservation creates a Reservation with the given marker TTL.
func NewReservation(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Reservation {
	return &Reservation{client: client, ttl: ttl, logger: logger}
}

// Acquire claims (scope, requestID) for the caller. ErrInFlight means another
// worker holds the claim.
func (r *Reservation) Acquire(ctx context.Context, scope, requestID string) error {
	ok, err := r.client.SetNX(ctx, reservationKey(scope, requestID), "1", r.ttl).Result()
	if err != nil {
		return fmt.Errorf("idempotency reservation failed: %w", err)
	}

	if !ok {
		return ErrInFlight
	}

	return nil
}

// Release frees the claim so a retry can proceed immediately. Best effort:
// an unreleased claim simply expires after the TTL.
func (r *Reservation) Release(ctx context.Context, scope, requestID string) {
	if err := r.client.Del(ctx, reservationKey(scope, requestID)).Err(); err != nil {
		r.logger.Warn("failed to release idempotency reservation",
			zap.String("scope", scope),
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func reservationKey(scope, requestID string) string {
	return reservationPrefix + scope + ":" + requestID
}
