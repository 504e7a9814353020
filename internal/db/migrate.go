package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Migrate executes the given schema statements in order at service startup.
// Statements must be additive and re-runnable (CREATE TABLE IF NOT EXISTS and
// friends), so every boot converges on the same schema.
func Migrate(ctx context.Context, pool *Pool, logger *zap.Logger, statements []string) error {
	logger.Info("running schema migrations", zap.Int("statements", len(statements)))

	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	logger.Info("schema migrations complete")

	return nil
}
