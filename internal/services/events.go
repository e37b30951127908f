package services

import (
	"context"
	"log/slog"
	"time"

	"dompet/internal/amqp"
)

// Publisher receives ledger change events. The AMQP client implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// notify publishes ev without failing the write that produced it; the
// reconciliation worker also runs on a timer and catches up.
func notify(ctx context.Context, p Publisher, logger *slog.Logger, ev *amqp.LedgerEvent) {
	if p == nil {
		logger.DebugContext(ctx, "No event publisher configured, skipping event", "kind", ev.Kind)
		return
	}
	if err := p.PublishEvent(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", ev.Kind, "entity_id", ev.EntityID, "error", err)
	}
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
