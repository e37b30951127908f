package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "tx-1",
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: "groceries",
		Amount:      Money{Cents: 15000},
		Type:        Expense,
		Category:    "Food",
		Account:     "BCA",
		Status:      StatusCompleted,
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutations := map[string]func(*Transaction){
		"zero date":      func(tx *Transaction) { tx.Date = time.Time{} },
		"no description": func(tx *Transaction) { tx.Description = "  " },
		"zero amount":    func(tx *Transaction) { tx.Amount = Money{} },
		"bad type":       func(tx *Transaction) { tx.Type = "transfer" },
		"no category":    func(tx *Transaction) { tx.Category = "" },
		"no account":     func(tx *Transaction) { tx.Account = "" },
		"bad status":     func(tx *Transaction) { tx.Status = "Done" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := validTransaction()
			mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTransactionCheck(t *testing.T) {
	tx := validTransaction()
	if err := tx.Check(); err != nil {
		t.Fatalf("expected well-formed, got %v", err)
	}

	tx.Date = time.Time{}
	tx.RawDate = "2025-13-45"
	err := tx.Check()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Field != "date" || pe.Value != "2025-13-45" || pe.RecordID != "tx-1" {
		t.Errorf("unexpected parse error %+v", pe)
	}
	if !errors.Is(err, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}

	tx = validTransaction()
	tx.Amount = Money{}
	tx.RawAmount = "twelve"
	if err := tx.Check(); !errors.As(err, &pe) || pe.Field != "amount" || pe.Value != "twelve" {
		t.Errorf("expected amount parse error, got %v", err)
	}
}

func TestStatusCounts(t *testing.T) {
	if !StatusCompleted.Counts() || !StatusPending.Counts() {
		t.Error("completed and pending transactions must count")
	}
	if StatusCancelled.Counts() {
		t.Error("cancelled transactions must not count")
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Category: "Food", Amount: Money{Cents: 100}, MonthYear: "2025-03"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.MonthYear = "2025-3"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for malformed month_year")
	}
}

func TestDebtValidateDueDay(t *testing.T) {
	d := Debt{Creditor: "Bank", PrincipalAmount: Money{Cents: 100}, DueDay: 29}
	if err := d.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid due day, got %v", err)
	}
	d.DueDay = 28
	if err := d.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestGoalAchieved(t *testing.T) {
	g := FinancialGoal{TargetAmount: Money{Cents: 1000}, CurrentAmount: Money{Cents: 999}}
	if g.Achieved() {
		t.Error("999 of 1000 should not be achieved")
	}
	g.CurrentAmount = Money{Cents: 1500}
	if !g.Achieved() {
		t.Error("over-contribution should be achieved")
	}
}

func TestHoldingValues(t *testing.T) {
	stock := StockHolding{
		Ticker:       "BBCA",
		Lots:         decimal.NewFromInt(2),
		BuyPrice:     Money{Cents: 900000},
		CurrentPrice: Money{Cents: 1000000},
	}
	if got := stock.CurrentValue().Cents; got != 200000000 {
		t.Errorf("stock value = %d, want 200000000", got)
	}
	if got := stock.CostBasis().Cents; got != 180000000 {
		t.Errorf("stock cost = %d, want 180000000", got)
	}

	gold := GoldHolding{WeightGrams: decimal.RequireFromString("2.5"), CurrentPricePerGram: Money{Cents: 100000}}
	if got := gold.CurrentValue().Cents; got != 250000 {
		t.Errorf("gold value = %d, want 250000", got)
	}

	dep := DepositHolding{BankName: "BRI", Principal: Money{Cents: 1000000}, TenorMonths: 6, InterestRate: 4}
	if got := dep.ProjectedInterest().Cents; got != 20000 {
		t.Errorf("deposit interest = %d, want 20000", got)
	}

	var h Holding = FundHolding{ProductName: "RDPU", Units: decimal.NewFromInt(10), CurrentNAV: Money{Cents: 150}}
	if h.Kind() != KindFund || h.CurrentValue().Cents != 1500 {
		t.Errorf("fund holding = %s %d", h.Kind(), h.CurrentValue().Cents)
	}
}

func TestNormalizeHoldingMaturity(t *testing.T) {
	dep := DepositHolding{StartDate: time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), TenorMonths: 6}
	got := NormalizeHolding(dep).(DepositHolding)
	want := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.MaturityDate.Equal(want) {
		t.Errorf("maturity = %s, want %s", got.MaturityDate, want)
	}

	fixed := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	dep.MaturityDate = fixed
	if got := NormalizeHolding(dep).(DepositHolding); !got.MaturityDate.Equal(fixed) {
		t.Errorf("explicit maturity overwritten: %s", got.MaturityDate)
	}

	gold := GoldHolding{WeightGrams: decimal.NewFromInt(1)}
	if _, ok := NormalizeHolding(gold).(GoldHolding); !ok {
		t.Error("non-deposit holding should pass through")
	}
}

func TestParseHoldingKind(t *testing.T) {
	if k, err := ParseHoldingKind(" Gold "); err != nil || k != KindGold {
		t.Fatalf("got %q, %v", k, err)
	}
	if _, err := ParseHoldingKind("crypto"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStoreUnavailableRetryable(t *testing.T) {
	err := error(&StoreUnavailableError{Op: "list transactions", Err: errors.New("disk I/O")})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("should match ErrStoreUnavailable")
	}
	if !IsRetryable(err) {
		t.Error("store unavailable should be retryable")
	}
	if IsRetryable(&AlreadyPaidError{}) {
		t.Error("already paid is not retryable")
	}
}
