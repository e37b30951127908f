// Package worker keeps account balances in step with transaction history.
//
// Account balances are a cached projection: opening balance plus the signed
// sum of the account's transactions. The Reconciler recomputes it when a
// ledger event arrives and on a fixed interval as a backstop for lost events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dompet/internal/aggregate"
	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/ports"
)

// Store is the part of the Ledger Store the reconciler needs.
type Store interface {
	ports.AccountStore
	ports.TransactionStore
}

type Config struct {
	// Interval between full reconciliations. Zero disables the timer.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

type Reconciler struct {
	store  Store
	config Config
	logger *slog.Logger

	// Serializes reconciliation runs so two events cannot interleave writes.
	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	onSync  func()
}

func NewReconciler(store Store, config Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, config: config, logger: logger}
}

// OnSync registers fn to run after every reconciliation that changed a
// balance.
func (r *Reconciler) OnSync(fn func()) {
	r.mu.Lock()
	r.onSync = fn
	r.mu.Unlock()
}

// HandleEvent reconciles in response to a ledger event.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	r.logger.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"entity_id", ev.EntityID,
		"account", ev.Account)

	_, err := r.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile after %s: %w", ev.Kind, err)
	}
	return nil
}

// Reconcile derives every account balance from the transactions and writes
// back those that drifted.
func (r *Reconciler) Reconcile(ctx context.Context) (aggregate.Reconciliation, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return aggregate.Reconciliation{}, fmt.Errorf("list accounts: %w", err)
	}
	txs, err := r.store.ListTransactions(ctx, ports.TransactionFilter{})
	if err != nil {
		return aggregate.Reconciliation{}, fmt.Errorf("list transactions: %w", err)
	}

	rec := aggregate.ReconcileBalances(accounts, txs)
	var errs []error
	for _, d := range rec.Drift {
		if err := r.store.SetAccountBalance(ctx, d.AccountID, d.Derived); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", d.AccountID, err))
			continue
		}
		r.logger.InfoContext(ctx, "Account balance reconciled",
			"account_id", d.AccountID,
			"name", d.Name,
			"stored_cents", d.Stored.Cents,
			"derived_cents", d.Derived.Cents)
	}
	if !rec.Complete() {
		r.logger.WarnContext(ctx, "Malformed transactions left out of balances",
			"excluded", len(rec.Excluded))
	}
	if len(rec.Orphans) > 0 {
		r.logger.WarnContext(ctx, "Transactions reference unknown accounts", "count", len(rec.Orphans))
	}
	if len(rec.Drift) > 0 {
		r.mu.Lock()
		fn := r.onSync
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
	return rec, errors.Join(errs...)
}

// Start runs the interval loop in the background. It fails if already
// running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.running = false
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	r.reconcileLogged(ctx)
	if r.config.Interval <= 0 {
		select {
		case <-r.stopCh:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileLogged(ctx)
		}
	}
}

func (r *Reconciler) reconcileLogged(ctx context.Context) {
	if _, err := r.Reconcile(ctx); err != nil {
		level := slog.LevelError
		if core.IsRetryable(err) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "Reconciliation failed", "error", err)
	}
}

// Inline publishes events straight into a Reconciler, for deployments
// without a broker.
type Inline struct {
	Reconciler *Reconciler
}

func (i Inline) PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	return i.Reconciler.HandleEvent(ctx, ev)
}
