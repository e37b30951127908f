// Package snapshot loads a point-in-time view of the Ledger Store that the
// aggregation functions consume.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

// Snapshot holds already-fetched collections. Nothing in it refers back to
// the store.
type Snapshot struct {
	AsOf         time.Time
	Transactions []core.Transaction
	Accounts     []core.Account
	Debts        []core.Debt
	Budgets      []core.Budget // budgets of AsOf's month
	Goals        []core.FinancialGoal
	Recurring    []core.RecurringDefinition
	Payments     []core.RecurringPayment // payments of AsOf's month
	Holdings     []core.Holding

	// HoldingIssues lists stored holdings that could not be decoded and
	// are missing from Holdings.
	HoldingIssues []*core.ParseError
}

// Month returns the month key of AsOf.
func (s Snapshot) Month() string {
	return period.MonthKey(s.AsOf)
}

// Load fetches every collection concurrently. The first failure cancels the
// remaining reads and is returned unchanged, so store outages keep their
// retryable type.
func Load(ctx context.Context, store ports.Store, asOf time.Time) (Snapshot, error) {
	s := Snapshot{AsOf: asOf}
	month := period.MonthKey(asOf)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Transactions, err = store.ListTransactions(ctx, ports.TransactionFilter{})
		return wrap("transactions", err)
	})
	g.Go(func() (err error) {
		s.Accounts, err = store.ListAccounts(ctx)
		return wrap("accounts", err)
	})
	g.Go(func() (err error) {
		s.Debts, err = store.ListDebts(ctx)
		return wrap("debts", err)
	})
	g.Go(func() (err error) {
		s.Budgets, err = store.ListBudgets(ctx, month)
		return wrap("budgets", err)
	})
	g.Go(func() (err error) {
		s.Goals, err = store.ListGoals(ctx)
		return wrap("goals", err)
	})
	g.Go(func() (err error) {
		s.Recurring, err = store.ListRecurringDefinitions(ctx)
		return wrap("recurring definitions", err)
	})
	g.Go(func() (err error) {
		s.Payments, err = store.ListRecurringPayments(ctx, month)
		return wrap("recurring payments", err)
	})
	g.Go(func() (err error) {
		s.Holdings, s.HoldingIssues, err = store.ListHoldings(ctx)
		return wrap("holdings", err)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}
