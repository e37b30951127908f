// Package budget compares spending against per-category monthly budgets.
package budget

import (
	"context"
	"log/slog"
	"sort"

	"dompet/internal/aggregate"
	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

type Status string

const (
	Good     Status = "good"
	Moderate Status = "moderate"
	Warning  Status = "warning"
	Over     Status = "over"
)

// Utilization is spent over amount in percent. A zero amount yields 0.
func Utilization(spent, amount core.Money) float64 {
	if amount.Cents <= 0 {
		return 0
	}
	return float64(spent.Cents) / float64(amount.Cents) * 100
}

// StatusOf classifies spending against an allocation. Thresholds compare in
// integer cents so that exactly 100% is over.
func StatusOf(spent, amount core.Money) Status {
	if amount.Cents <= 0 {
		return Good
	}
	s, a := spent.Cents*100, amount.Cents
	switch {
	case s >= 100*a:
		return Over
	case s >= 80*a:
		return Warning
	case s >= 50*a:
		return Moderate
	default:
		return Good
	}
}

// Line is a budget with its derived spending.
type Line struct {
	core.Budget
	Spent       core.Money `json:"spent"`
	Remaining   core.Money `json:"remaining"`
	Utilization float64    `json:"utilization_percentage"`
	Status      Status     `json:"status"`
}

// spent sums the expense transactions of category within monthYear. txs
// must already be filtered by aggregate.Usable.
func spent(txs []core.Transaction, category, monthYear string) core.Money {
	var total core.Money
	key := core.NameKey(category)
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if period.MonthKey(tx.Date) != monthYear || core.NameKey(tx.Category) != key {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total
}

// Lines derives the spending of every budget, ordered by utilization
// descending. Malformed transactions are left out of every line and listed
// in the returned report.
func Lines(budgets []core.Budget, txs []core.Transaction) ([]Line, aggregate.Report) {
	usable, report := aggregate.Usable(txs)
	out := make([]Line, 0, len(budgets))
	for _, b := range budgets {
		used := spent(usable, b.Category, b.MonthYear)
		out = append(out, Line{
			Budget:      b,
			Spent:       used,
			Remaining:   b.Amount.Sub(used),
			Utilization: Utilization(used, b.Amount),
			Status:      StatusOf(used, b.Amount),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Utilization > out[j].Utilization })
	return out, report
}

// Summary totals a set of budget lines.
type Summary struct {
	TotalBudget  core.Money `json:"total_budget"`
	TotalSpent   core.Money `json:"total_spent"`
	Remaining    core.Money `json:"remaining"`
	Utilization  float64    `json:"utilization_percentage"`
	OverBudget   int        `json:"over_budget_count"`
	NearLimit    int        `json:"near_limit_count"`
	BudgetsCount int        `json:"budgets_count"`
}

func Summarize(lines []Line) Summary {
	var s Summary
	for _, l := range lines {
		s.TotalBudget = s.TotalBudget.Add(l.Amount)
		s.TotalSpent = s.TotalSpent.Add(l.Spent)
		switch l.Status {
		case Over:
			s.OverBudget++
		case Warning:
			s.NearLimit++
		}
	}
	s.BudgetsCount = len(lines)
	s.Remaining = s.TotalBudget.Sub(s.TotalSpent)
	s.Utilization = Utilization(s.TotalSpent, s.TotalBudget)
	return s
}

// Tracker creates budgets through the store, which owns the
// (category, month_year) uniqueness guard.
type Tracker struct {
	store  ports.BudgetStore
	logger *slog.Logger
}

func NewTracker(store ports.BudgetStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// Create validates b and stores it. A second budget for the same category
// and month fails with *core.DuplicateBudgetError.
func (t *Tracker) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.Period == "" {
		b.Period = "monthly"
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := t.store.CreateBudget(ctx, b)
	if err != nil {
		t.logger.WarnContext(ctx, "Budget creation rejected",
			"category", b.Category, "month_year", b.MonthYear, "error", err)
		return core.Budget{}, err
	}
	return created, nil
}

// Update replaces a budget. Moving it onto a (category, month) that already
// has a budget fails with DuplicateBudgetError.
func (t *Tracker) Update(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.Period == "" {
		b.Period = "monthly"
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := t.store.UpdateBudget(ctx, b); err != nil {
		t.logger.WarnContext(ctx, "Budget update rejected",
			"budget_id", b.ID, "category", b.Category, "month_year", b.MonthYear, "error", err)
		return core.Budget{}, err
	}
	return b, nil
}

// Report is the budget view of a month.
type Report struct {
	MonthYear string  `json:"month_year"`
	Lines     []Line  `json:"budgets"`
	Summary   Summary `json:"summary"`
	aggregate.Report
}

// Month loads the budgets of monthYear and derives their spending from txs.
func (t *Tracker) Month(ctx context.Context, monthYear string, txs []core.Transaction) (Report, error) {
	if !period.Valid(monthYear) {
		return Report{}, core.NewInvalidInput("month_year", "month_year must be YYYY-MM")
	}
	budgets, err := t.store.ListBudgets(ctx, monthYear)
	if err != nil {
		return Report{}, err
	}
	lines, report := Lines(budgets, txs)
	return Report{MonthYear: monthYear, Lines: lines, Summary: Summarize(lines), Report: report}, nil
}
