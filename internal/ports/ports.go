// Package ports defines the Ledger Store collaborator consumed by the engine.
//
// Implementations must enforce the uniqueness invariants themselves: one
// budget per (category, month_year), one account per case-folded name and one
// recurring payment per (recurring_id, month_year). I/O failures surface as
// *core.StoreUnavailableError.
package ports

import (
	"context"
	"time"

	"dompet/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	From     time.Time // inclusive
	To       time.Time // exclusive
	Type     core.TransactionType
	Category string
	Account  string
	Limit    int
}

// Matches reports whether t passes the filter. Stores that cannot push a
// predicate down apply it in memory.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if !f.From.IsZero() && !t.Date.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Date.IsZero() && !t.Date.Before(f.To) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && !core.SameName(f.Category, t.Category) {
		return false
	}
	if f.Account != "" && !core.SameName(f.Account, t.Account) {
		return false
	}
	return true
}

type (
	TransactionStore interface {
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		// CreateAccount fails with *core.DuplicateAccountError when the
		// case-folded name is taken.
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		UpdateAccount(ctx context.Context, a core.Account) error
		// SetAccountBalance overwrites the cached balance projection.
		SetAccountBalance(ctx context.Context, id string, balance core.Money) error
		DeleteAccount(ctx context.Context, id string) error
	}

	DebtStore interface {
		ListDebts(ctx context.Context) ([]core.Debt, error)
		GetDebt(ctx context.Context, id string) (core.Debt, error)
		CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		UpdateDebt(ctx context.Context, d core.Debt) error
		DeleteDebt(ctx context.Context, id string) error
		// ChargeCreditor adds opening.CurrentBalance to the active debt owed
		// to opening.Creditor (matched case-insensitively), or stores opening
		// when there is none. Lookup and write are one unit, so concurrent
		// charges never open two debts for the same creditor.
		ChargeCreditor(ctx context.Context, opening core.Debt) (debt core.Debt, opened bool, err error)
	}

	BudgetStore interface {
		// ListBudgets returns the budgets of monthYear, or all budgets when
		// monthYear is empty.
		ListBudgets(ctx context.Context, monthYear string) ([]core.Budget, error)
		// CreateBudget fails with *core.DuplicateBudgetError when the
		// (category, month_year) pair exists.
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id string) error
	}

	GoalStore interface {
		ListGoals(ctx context.Context) ([]core.FinancialGoal, error)
		GetGoal(ctx context.Context, id string) (core.FinancialGoal, error)
		CreateGoal(ctx context.Context, g core.FinancialGoal) (core.FinancialGoal, error)
		UpdateGoal(ctx context.Context, g core.FinancialGoal) error
		DeleteGoal(ctx context.Context, id string) error
		// AddContribution records c and increments the goal's current amount
		// as one unit, returning the updated goal.
		AddContribution(ctx context.Context, c core.GoalContribution) (core.FinancialGoal, error)
		ListContributions(ctx context.Context, goalID string) ([]core.GoalContribution, error)
	}

	RecurringStore interface {
		ListRecurringDefinitions(ctx context.Context) ([]core.RecurringDefinition, error)
		GetRecurringDefinition(ctx context.Context, id string) (core.RecurringDefinition, error)
		CreateRecurringDefinition(ctx context.Context, r core.RecurringDefinition) (core.RecurringDefinition, error)
		UpdateRecurringDefinition(ctx context.Context, r core.RecurringDefinition) error
		DeleteRecurringDefinition(ctx context.Context, id string) error
		// ListRecurringPayments returns the payments of monthYear, or all
		// payments when monthYear is empty.
		ListRecurringPayments(ctx context.Context, monthYear string) ([]core.RecurringPayment, error)
		// MarkRecurringPaid creates tx and p in one unit. A second call for
		// the same (recurring_id, month_year) fails with
		// *core.AlreadyPaidError and leaves no transaction behind.
		MarkRecurringPaid(ctx context.Context, p core.RecurringPayment, tx core.Transaction) (core.RecurringPayment, core.Transaction, error)
	}

	HoldingStore interface {
		// ListHoldings returns the decodable holdings and a *core.ParseError
		// for every stored row that is not.
		ListHoldings(ctx context.Context) ([]core.Holding, []*core.ParseError, error)
		CreateHolding(ctx context.Context, h core.Holding) (core.Holding, error)
		DeleteHolding(ctx context.Context, id string) error
	}

	// Store is the full Ledger Store.
	Store interface {
		TransactionStore
		AccountStore
		DebtStore
		BudgetStore
		GoalStore
		RecurringStore
		HoldingStore
		Close() error
	}
)
