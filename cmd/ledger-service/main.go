package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/config"
	"github.com/pedrobono/BankMore/internal/db"
	"github.com/pedrobono/BankMore/internal/ledger"
	"github.com/pedrobono/BankMore/internal/messaging"
	"github.com/pedrobono/BankMore/internal/runtime"
	"github.com/pedrobono/BankMore/internal/settlement"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadLedger()
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

	if err := db.Migrate(ctx, pool, logger, ledger.Schema); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	service := ledger.NewService(
		ledger.NewPostgresMovementRepository(pool.Pool),
		ledger.NewPostgresAccountRepository(pool.Pool),
		logger,
	)

	handler := ledger.NewHandler(service, cfg.APIToken, logger)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	collector := settlement.NewCollector(service, logger)
	consumer := messaging.NewConsumer(
		cfg.RabbitMQ.URL,
		messaging.QueueBinding{
			Queue:      messaging.QueueFeeAssessed,
			BindingKey: messaging.BindingKeyFeeAssessed,
		},
		messaging.DefaultConsumerConfig(),
		collector.HandleFeeAssessed,
		logger,
	)

	supervisor := runtime.NewSupervisor(logger)
	supervisor.Add("fee-assessed-consumer", consumer.Run)
	supervisor.Add("http-server", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logger.Info("ledger API listening", zap.String("port", cfg.HTTPPort))
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

	logger.Info("ledger service started")
	supervisor.Run(ctx)
	logger.Info("ledger service stopped gracefully")
}
