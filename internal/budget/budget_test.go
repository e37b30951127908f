package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"dompet/internal/core"
	"dompet/internal/storage/memory"
)

func m(c int64) core.Money { return core.Money{Cents: c} }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name          string
		spent, amount int64
		want          Status
	}{
		{"nothing spent", 0, 1000, Good},
		{"just under half", 499, 1000, Good},
		{"half", 500, 1000, Moderate},
		{"eighty percent", 800, 1000, Warning},
		{"just under full", 999, 1000, Warning},
		{"exactly full", 1000, 1000, Over},
		{"overspent", 1500, 1000, Over},
		{"zero amount", 300, 0, Good},
		{"zero amount nothing spent", 0, 0, Good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(m(tt.spent), m(tt.amount)); got != tt.want {
				t.Fatalf("StatusOf(%d, %d) = %s, want %s", tt.spent, tt.amount, got, tt.want)
			}
		})
	}
}

func TestUtilizationZeroAmount(t *testing.T) {
	if got := Utilization(m(500), m(0)); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestLinesAndSummary(t *testing.T) {
	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{ID: "1", Date: march, Amount: m(900), Type: core.Expense, Category: "food", Status: core.StatusCompleted},
		{ID: "2", Date: march, Amount: m(300), Type: core.Expense, Category: "Food", Status: core.StatusCancelled},
		{ID: "3", Date: march.AddDate(0, 1, 0), Amount: m(500), Type: core.Expense, Category: "Food"},
		{ID: "4", Date: march, Amount: m(5000), Type: core.Income, Category: "Food"},
		{ID: "5", Date: march, Amount: m(100), Type: core.Expense, Category: "Fun", Status: core.StatusPending},
	}
	budgets := []core.Budget{
		{ID: "b1", Category: "Food", Amount: m(1000), MonthYear: "2025-03"},
		{ID: "b2", Category: "Fun", Amount: m(1000), MonthYear: "2025-03"},
		{ID: "b3", Category: "Rent", Amount: m(2000), MonthYear: "2025-03"},
	}

	lines, report := Lines(budgets, txs)
	if !report.Complete() {
		t.Fatalf("unexpected exclusions: %v", report.Err())
	}
	if lines[0].ID != "b1" || lines[0].Spent.Cents != 900 || lines[0].Status != Warning {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	s := Summarize(lines)
	want := Summary{
		TotalBudget:  m(4000),
		TotalSpent:   m(1000),
		Remaining:    m(3000),
		Utilization:  25,
		OverBudget:   0,
		NearLimit:    1,
		BudgetsCount: 3,
	}
	if s != want {
		t.Fatalf("summary = %+v, want %+v", s, want)
	}

	if empty := Summarize(nil); empty.Utilization != 0 || empty.BudgetsCount != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestLinesReportMalformedSpending(t *testing.T) {
	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{ID: "ok", Date: march, Amount: m(10000), Type: core.Expense, Category: "Food"},
		{ID: "bad-date", RawDate: "31/03/2025", Amount: m(90000), Type: core.Expense, Category: "Food"},
		{ID: "bad-amount", Date: march, RawAmount: "twelve", Type: core.Expense, Category: "Food"},
	}
	budgets := []core.Budget{{ID: "b1", Category: "Food", Amount: m(50000), MonthYear: "2025-03"}}

	lines, report := Lines(budgets, txs)
	if lines[0].Spent != m(10000) || lines[0].Status != Good {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
	if len(report.Excluded) != 2 {
		t.Fatalf("expected 2 exclusions, got %+v", report.Excluded)
	}
	if got := report.Excluded[0]; got.RecordID != "bad-date" || got.Field != "date" || got.Value != "31/03/2025" {
		t.Fatalf("unexpected date exclusion: %+v", got)
	}
	if got := report.Excluded[1]; got.RecordID != "bad-amount" || got.Field != "amount" {
		t.Fatalf("unexpected amount exclusion: %+v", got)
	}
}

func TestTrackerMonthCarriesExclusions(t *testing.T) {
	tr := NewTracker(memory.New(), nil)
	ctx := context.Background()
	if _, err := tr.Create(ctx, core.Budget{Category: "Food", Amount: m(50000), MonthYear: "2025-03"}); err != nil {
		t.Fatal(err)
	}
	txs := []core.Transaction{
		{ID: "ok", Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Amount: m(10000), Type: core.Expense, Category: "Food"},
		{ID: "bad", RawDate: "2025-03-99", Amount: m(90000), Type: core.Expense, Category: "Food"},
	}

	report, err := tr.Month(ctx, "2025-03", txs)
	if err != nil {
		t.Fatal(err)
	}
	if report.Complete() || report.Excluded[0].RecordID != "bad" {
		t.Fatalf("expected the malformed expense to be reported, got %+v", report.Report)
	}
	if report.Summary.TotalSpent != m(10000) {
		t.Fatalf("total spent = %v", report.Summary.TotalSpent)
	}
}

func TestTrackerRejectsDuplicate(t *testing.T) {
	tr := NewTracker(memory.New(), nil)
	ctx := context.Background()
	b := core.Budget{Category: "Food", Amount: m(1000), MonthYear: "2025-03"}

	created, err := tr.Create(ctx, b)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Period != "monthly" {
		t.Fatalf("expected default period, got %q", created.Period)
	}
	_, err = tr.Create(ctx, b)
	var dup *core.DuplicateBudgetError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateBudgetError, got %v", err)
	}

	if _, err := tr.Create(ctx, core.Budget{Category: "Food", Amount: m(1), MonthYear: "2025-3"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(memory.New(), nil)
	ctx := context.Background()
	food, err := tr.Create(ctx, core.Budget{Category: "Food", Amount: m(100), MonthYear: "2025-03"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Create(ctx, core.Budget{Category: "Transport", Amount: m(50), MonthYear: "2025-03"}); err != nil {
		t.Fatal(err)
	}

	food.Amount = m(150)
	if got, err := tr.Update(ctx, food); err != nil || got.Amount != m(150) {
		t.Fatalf("update amount: %+v, %v", got, err)
	}
	food.Category = "transport"
	if _, err := tr.Update(ctx, food); !errors.Is(err, core.ErrDuplicateBudget) {
		t.Fatalf("expected duplicate budget, got %v", err)
	}
	if _, err := tr.Update(ctx, core.Budget{ID: "missing", Category: "Rent", Amount: m(1), MonthYear: "2025-03"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTrackerMonth(t *testing.T) {
	store := memory.New()
	tr := NewTracker(store, nil)
	ctx := context.Background()
	if _, err := tr.Create(ctx, core.Budget{Category: "Food", Amount: m(100), MonthYear: "2025-03"}); err != nil {
		t.Fatal(err)
	}
	txs := []core.Transaction{{ID: "1", Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Amount: m(100), Type: core.Expense, Category: "Food"}}

	r, err := tr.Month(ctx, "2025-03", txs)
	if err != nil {
		t.Fatal(err)
	}
	if r.Summary.OverBudget != 1 || r.Lines[0].Status != Over {
		t.Fatalf("unexpected report: %+v", r)
	}
	if _, err := tr.Month(ctx, "March", nil); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
