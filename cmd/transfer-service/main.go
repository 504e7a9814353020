package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/config"
	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/idempotency"
	"github.com/pedrobono/BankMore/internal/messaging"
	"github.com/pedrobono/BankMore/internal/outbox"
	"github.com/pedrobono/BankMore/internal/runtime"
	"github.com/pedrobono/BankMore/internal/transfer"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadTransfer()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	var schema []string
	schema = append(schema, transfer.Schema...)
	schema = append(schema, idempotency.Schema...)
	schema = append(schema, outbox.Schema...)
	if err := db.Migrate(ctx, pool, logger, schema); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	producer, err := messaging.NewProducer(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("failed to initialize producer", zap.Error(err))
	}
	defer producer.Close()

	guard := idempotency.NewPostgresStore(pool.Pool)
	reservation := idempotency.NewReservation(redisClient, cfg.Redis.ReservationTTL, logger)
	outboxRepo := outbox.NewPostgresRepository(pool)
	ledgerClient := transfer.NewHTTPLedgerClient(cfg.Ledger.BaseURL, cfg.Ledger.Token, logger)
	txManager := db.NewTxManager(pool.Pool, logger)

	coordinator := transfer.NewCoordinator(
		transfer.NewPostgresRepository(pool),
		outboxRepo,
		guard,
		reservation,
		ledgerClient,
		txManager,
		logger,
	)

	handler := transfer.NewHandler(coordinator, cfg.APIToken, logger)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	relay := outbox.NewRelay(outboxRepo, producer, outbox.DefaultRelayConfig(), logger)

	supervisor := runtime.NewSupervisor(logger)
	supervisor.Add("outbox-relay", relay.Run)
	supervisor.Add("http-server", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logger.Info("transfer API listening", zap.String("port", cfg.HTTPPort))
			errCh <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})

	logger.Info("transfer service started")
	supervisor.Run(ctx)
	logger.Info("transfer service stopped gracefully")
}
