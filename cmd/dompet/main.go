package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dompet/internal/cli"
	apphttp "dompet/internal/http"
	"dompet/internal/log"
	"dompet/internal/services"
	"dompet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backend := cli.OpenBackend(context.Background(), logger, cfg)
	categorizer := cli.LoadCategorizer(logger, cfg.CategoryRulesPath)

	reconciler := worker.NewReconciler(backend.Store, worker.Config{Interval: cfg.ReconcileInterval},
		logger.WithComponent(log.ComponentWorker).Logger)

	// Without a broker, ledger events are reconciled in-process and the
	// interval loop runs here instead of in ledger-worker.
	var publisher services.Publisher = worker.Inline{Reconciler: reconciler}
	if backend.Broker != nil {
		publisher = backend.Broker
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:           backend.Store,
		Publisher:       publisher,
		Categorizer:     categorizer,
		Logger:          logger,
		DashboardMonths: cfg.DashboardMonths,
		CacheTTL:        cfg.CacheTTL,
		CacheSize:       cfg.CacheSize,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	reconciler.OnSync(srv.InvalidateViews)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.LogError(ctx, "Server shutdown error", err, log.OpShutdown, log.ErrorTypeInternal)
		}
		if err := reconciler.Stop(ctx); err != nil {
			logger.LogError(ctx, "Reconciler shutdown error", err, log.OpShutdown, log.ErrorTypeInternal)
		}
		if err := backend.Cleanup(); err != nil {
			logger.LogError(ctx, "Backend cleanup error", err, log.OpShutdown, log.ErrorTypeDatabase)
		}
	})

	if backend.Broker == nil {
		if err := reconciler.Start(ctx); err != nil {
			logger.Error("Failed to start reconciler", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Starting dompet server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"broker", backend.Broker != nil,
		"currency", cfg.Currency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
