// Command recurring-generate marks paid every recurring definition due in a
// month. Runs are idempotent; schedule it externally.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"dompet/internal/cli"
	"dompet/internal/log"
	"dompet/internal/period"
	"dompet/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	month := flag.String("month", period.MonthKey(time.Now()), "month to generate, YYYY-MM")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentRecurring)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := backend.Cleanup(); err != nil {
			logger.LogError(ctx, "Backend cleanup error", err, log.OpShutdown, log.ErrorTypeDatabase)
		}
	}()

	var publisher services.Publisher
	if backend.Broker != nil {
		publisher = backend.Broker
	}
	engine := services.NewRecurringEngine(backend.Store, publisher, nil, logger.Logger)

	res, err := engine.GenerateDue(ctx, *month)
	if err != nil {
		logger.LogError(ctx, "Recurring generation failed", err, log.OpGenerate, log.ErrorTypeDatabase)
		return 1
	}
	for id, reason := range res.Failed {
		logger.Warn("Recurring definition not generated", log.FieldEntityID, id, "reason", reason)
	}
	if len(res.Failed) > 0 {
		return 2
	}
	return 0
}
