package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/config"
	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/fee"
	"github.com/pedrobono/BankMore/internal/idempotency"
	"github.com/pedrobono/BankMore/internal/messaging"
	"github.com/pedrobono/BankMore/internal/outbox"
	"github.com/pedrobono/BankMore/internal/runtime"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadFee()
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
	schema = append(schema, fee.Schema...)
	schema = append(schema, idempotency.Schema...)
	schema = append(schema, outbox.Schema...)
	if err := db.Migrate(ctx, pool, logger, schema); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	producer, err := messaging.NewProducer(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("failed to initialize producer", zap.Error(err))
	}
	defer producer.Close()

	outboxRepo := outbox.NewPostgresRepository(pool)
	assessor := fee.NewAssessor(
		fee.NewPostgresRepository(pool),
		outboxRepo,
		idempotency.NewPostgresStore(pool.Pool),
		fee.NewFlatSchedule(domain.Amount(cfg.FlatFee)),
		db.NewTxManager(pool.Pool, logger),
		logger,
	)

	consumer := messaging.NewConsumer(
		cfg.RabbitMQ.URL,
		messaging.QueueBinding{
			Queue:      messaging.QueueTransferCompleted,
			BindingKey: messaging.BindingKeyTransferCompleted,
		},
		messaging.DefaultConsumerConfig(),
		assessor.HandleTransferCompleted,
		logger,
	)

	relay := outbox.NewRelay(outboxRepo, producer, outbox.DefaultRelayConfig(), logger)

	metricsServer := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     promhttp.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	supervisor := runtime.NewSupervisor(logger)
	supervisor.Add("transfer-completed-consumer", consumer.Run)
	supervisor.Add("outbox-relay", relay.Run)
	supervisor.Add("metrics-server", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logger.Info("metrics listening", zap.String("port", cfg.MetricsPort))
			errCh <- metricsServer.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})

	logger.Info("fee service started", zap.String("flat_fee", cfg.FlatFee))
	supervisor.Run(ctx)
	logger.Info("fee service stopped gracefully")
}
