package main

import (
	"context"
	"errors"
	"os"
	"time"

	"dompet/internal/cli"
	"dompet/internal/log"
	"dompet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by ledger-worker")
		os.Exit(1)
	}

	backend := cli.OpenBackend(context.Background(), logger, cfg)
	if backend.Broker == nil {
		logger.Error("Broker unreachable, cannot consume ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		_ = backend.Cleanup()
		os.Exit(1)
	}

	reconciler := worker.NewReconciler(backend.Store, worker.Config{Interval: cfg.ReconcileInterval}, logger.Logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := reconciler.Stop(ctx); err != nil {
			logger.LogError(ctx, "Reconciler shutdown error", err, log.OpShutdown, log.ErrorTypeInternal)
		}
		if err := backend.Cleanup(); err != nil {
			logger.LogError(ctx, "Backend cleanup error", err, log.OpShutdown, log.ErrorTypeDatabase)
		}
	})

	// The interval loop reconciles once at startup, catching up on events
	// missed while the worker was down.
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := backend.Broker.ConsumeEvents(ctx, reconciler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.LogError(ctx, "Event consumption failed", err, log.OpReconcile, log.ErrorTypeNetwork)
		}
	}()

	logger.Info("Consuming ledger events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"reconcile_interval", cfg.ReconcileInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger worker stopped")
}
