package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dompet/internal/core"
	"dompet/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Date:        day(2025, 3, 14),
		Description: "Groceries",
		Amount:      core.Money{Cents: 12345},
		Type:        core.Expense,
		Category:    "Food",
		Account:     "BCA",
		Tags:        []string{"weekly"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != core.StatusCompleted {
		t.Fatalf("unexpected created transaction: %+v", created)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Date.Equal(day(2025, 3, 14)) || got.Amount.Cents != 12345 || len(got.Tags) != 1 {
		t.Fatalf("unexpected transaction: %+v", got)
	}

	list, err := repo.ListTransactions(ctx, ports.TransactionFilter{Category: "food"})
	if err != nil || len(list) != 1 {
		t.Fatalf("list by folded category: %v %v", list, err)
	}

	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMalformedDateIsKeptForReporting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id, date, description, amount_cents, type, category, account)
		VALUES ('bad', '2025-13-45', 'broken', 100, 'expense', 'Food', 'BCA')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, err := repo.ListTransactions(ctx, ports.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected malformed row to be returned, got %d", len(list))
	}
	var pe *core.ParseError
	if err := list[0].Check(); !errors.As(err, &pe) || pe.Value != "2025-13-45" {
		t.Fatalf("expected parse error carrying raw date, got %v", err)
	}
}

func TestNonIntegerAmountIsKeptForReporting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id, date, description, amount_cents, type, category, account)
		VALUES ('words', '2025-03-14', 'broken', 'twelve', 'expense', 'Food', 'BCA'),
		       ('fine', '2025-03-15', 'lunch', 1200, 'expense', 'Food', 'BCA')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, err := repo.ListTransactions(ctx, ports.TransactionFilter{})
	if err != nil {
		t.Fatalf("one bad amount must not fail the list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected both rows, got %d", len(list))
	}
	var pe *core.ParseError
	if err := list[0].Check(); !errors.As(err, &pe) || pe.RecordID != "words" || pe.Field != "amount" || pe.Value != "twelve" {
		t.Fatalf("expected amount parse error, got %v", err)
	}
	if err := list[1].Check(); err != nil || list[1].Amount.Cents != 1200 {
		t.Fatalf("unexpected good row: %+v %v", list[1], err)
	}
}

func TestRangeFilterKeepsMalformedDates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id, date, description, amount_cents, type, category, account)
		VALUES ('in', '2025-03-14', 'lunch', 100, 'expense', 'Food', 'BCA'),
		       ('out', '2025-04-01', 'lunch', 100, 'expense', 'Food', 'BCA'),
		       ('slashed', '31/03/2025', 'broken', 100, 'expense', 'Food', 'BCA'),
		       ('overflow', '2025-02-30', 'broken', 100, 'expense', 'Food', 'BCA')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, err := repo.ListTransactions(ctx, ports.TransactionFilter{From: day(2025, 3, 1), To: day(2025, 4, 1)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, tx := range list {
		got[tx.ID] = true
	}
	if len(got) != 3 || !got["in"] || !got["slashed"] || !got["overflow"] {
		t.Fatalf("expected in-range and malformed rows, got %v", got)
	}
}

func TestMalformedTagsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id, date, description, amount_cents, type, category, account, tags)
		VALUES ('tagged', '2025-03-14', 'lunch', 100, 'expense', 'Food', 'BCA', '[weekly')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tagged")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tags != nil {
		t.Fatalf("expected no tags, got %v", got.Tags)
	}
	if out := buf.String(); !bytes.Contains([]byte(out), []byte("Ignoring malformed transaction tags")) || !bytes.Contains([]byte(out), []byte("id=tagged")) {
		t.Fatalf("expected a warning naming the row, got %q", out)
	}
}

func TestDuplicateAccountIsCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateAccount(ctx, core.Account{Name: "Savings", Type: "bank"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.CreateAccount(ctx, core.Account{Name: "SAVINGS ", Type: "bank"})
	if !errors.Is(err, core.ErrDuplicateAccount) {
		t.Fatalf("expected duplicate account, got %v", err)
	}
}

func TestDuplicateBudgetRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := core.Budget{Category: "Food", Amount: core.Money{Cents: 100000}, Period: "monthly", MonthYear: "2025-03"}
	if _, err := repo.CreateBudget(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.CreateBudget(ctx, b)
	var dup *core.DuplicateBudgetError
	if !errors.As(err, &dup) || dup.MonthYear != "2025-03" {
		t.Fatalf("expected DuplicateBudgetError, got %v", err)
	}

	b.MonthYear = "2025-04"
	if _, err := repo.CreateBudget(ctx, b); err != nil {
		t.Fatalf("next month should be allowed: %v", err)
	}
	march, _ := repo.ListBudgets(ctx, "2025-03")
	if len(march) != 1 {
		t.Fatalf("expected 1 budget for 2025-03, got %d", len(march))
	}
}

func TestMarkRecurringPaidOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pay := core.RecurringPayment{RecurringID: "rent", MonthYear: "2025-03", PaymentDate: day(2025, 3, 1), Amount: core.Money{Cents: 500000}}
	tx := core.Transaction{Date: day(2025, 3, 1), Description: "Rent", Amount: core.Money{Cents: 500000},
		Type: core.Expense, Category: "Housing", Account: "BCA"}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.MarkRecurringPaid(ctx, pay, tx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, core.ErrAlreadyPaid):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || already != callers-1 {
		t.Fatalf("successes=%d already=%d", successes, already)
	}
	txs, _ := repo.ListTransactions(ctx, ports.TransactionFilter{})
	payments, _ := repo.ListRecurringPayments(ctx, "2025-03")
	if len(txs) != 1 || len(payments) != 1 {
		t.Fatalf("expected one transaction and one payment, got %d and %d", len(txs), len(payments))
	}
	if payments[0].TransactionID != txs[0].ID {
		t.Fatalf("payment does not reference its transaction")
	}
}

func TestAddContributionMarksAchieved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g, err := repo.CreateGoal(ctx, core.FinancialGoal{Name: "Laptop", TargetAmount: core.Money{Cents: 1000}, TargetDate: day(2026, 1, 1)})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	g, err = repo.AddContribution(ctx, core.GoalContribution{GoalID: g.ID, Amount: core.Money{Cents: 600}, Date: day(2025, 3, 1)})
	if err != nil || g.IsAchieved || g.CurrentAmount.Cents != 600 {
		t.Fatalf("first contribution: %+v %v", g, err)
	}
	g, err = repo.AddContribution(ctx, core.GoalContribution{GoalID: g.ID, Amount: core.Money{Cents: 600}, Date: day(2025, 4, 1)})
	if err != nil || !g.IsAchieved || g.CurrentAmount.Cents != 1200 {
		t.Fatalf("second contribution: %+v %v", g, err)
	}
	contributions, _ := repo.ListContributions(ctx, g.ID)
	if len(contributions) != 2 {
		t.Fatalf("expected 2 contributions, got %d", len(contributions))
	}

	if _, err := repo.AddContribution(ctx, core.GoalContribution{GoalID: "missing", Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHoldingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	gold := core.GoldHolding{GoldType: "Antam", WeightGrams: mustDecimal(t, "2.5"),
		BuyPricePerGram: core.Money{Cents: 100000}, CurrentPricePerGram: core.Money{Cents: 120000}}
	created, err := repo.CreateHolding(ctx, gold)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, issues, err := repo.ListHoldings(ctx)
	if err != nil || len(list) != 1 || len(issues) != 0 {
		t.Fatalf("list: %v %v %v", list, issues, err)
	}
	got, ok := list[0].(core.GoldHolding)
	if !ok || got.ID != created.HoldingID() || got.CurrentValue().Cents != 300000 {
		t.Fatalf("unexpected holding: %#v", list[0])
	}
}

func TestUndecodableHoldingIsSkipped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateHolding(ctx, core.DepositHolding{BankName: "BRI", Principal: core.Money{Cents: 100000}, TenorMonths: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `INSERT INTO holdings (id, kind, payload) VALUES ('broken', 'stock', '{not json')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, issues, err := repo.ListHoldings(ctx)
	if err != nil {
		t.Fatalf("one bad payload must not fail the list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected the good holding, got %d", len(list))
	}
	if len(issues) != 1 || issues[0].RecordID != "broken" || issues[0].Field != "payload" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestChargeCreditorKeepsOneDebt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	opening := func() core.Debt {
		return core.Debt{DebtType: core.DebtCreditCard, Creditor: "Visa", DueDay: 1, PrincipalAmount: core.Money{Cents: 1000},
			CurrentBalance: core.Money{Cents: 1000}, StartDate: day(2025, 3, 1), IsActive: true}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, o, err := repo.ChargeCreditor(ctx, opening())
			if err != nil {
				t.Errorf("charge: %v", err)
				return
			}
			if o {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	debts, err := repo.ListDebts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(debts) != 1 || opened != 1 {
		t.Fatalf("expected one debt opened once, got %d debts, %d opened", len(debts), opened)
	}
	if debts[0].CurrentBalance.Cents != 8000 || debts[0].PrincipalAmount.Cents != 1000 {
		t.Fatalf("unexpected debt: %+v", debts[0])
	}

	other := opening()
	other.Creditor = " visa "
	if d, o, err := repo.ChargeCreditor(ctx, other); err != nil || o || d.CurrentBalance.Cents != 9000 {
		t.Fatalf("case-insensitive match: %+v %v %v", d, o, err)
	}
}
