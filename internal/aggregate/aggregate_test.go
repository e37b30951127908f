package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/core"
	"dompet/internal/period"
)

func tx(id string, date time.Time, typ core.TransactionType, cents int64, category string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        date,
		Description: id,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Category:    category,
		Account:     "Cash",
		Status:      core.StatusCompleted,
	}
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 12, 0, 0, 0, time.UTC)
}

func TestMonthlyTotalsBucketsAreDisjoint(t *testing.T) {
	txs := []core.Transaction{
		tx("1", d(2025, 1, 5), core.Income, 1000, "Salary"),
		tx("2", d(2025, 1, 31), core.Expense, 300, "Food"),
		tx("3", d(2025, 2, 1), core.Expense, 200, "Food"),
		tx("4", d(2025, 3, 15), core.Income, 500, "Bonus"),
		tx("5", d(2025, 3, 16), core.Expense, 50, "Food"),
	}
	keys := period.MonthsBack(3, d(2025, 3, 20))
	got, report := MonthlyTotals(txs, keys)
	require.True(t, report.Complete())

	assert.Equal(t, Totals{Income: core.Money{Cents: 1000}, Expense: core.Money{Cents: 300}, Net: core.Money{Cents: 700}}, got["2025-01"])
	assert.Equal(t, Totals{Expense: core.Money{Cents: 200}, Net: core.Money{Cents: -200}}, got["2025-02"])
	assert.Equal(t, int64(450), got["2025-03"].Net.Cents)

	all, _ := Sum(txs)
	var income, expense int64
	for _, k := range keys {
		income += got[k].Income.Cents
		expense += got[k].Expense.Cents
	}
	assert.Equal(t, all.Income.Cents, income)
	assert.Equal(t, all.Expense.Cents, expense)
}

func TestMonthlyTotalsEmptyBuckets(t *testing.T) {
	got, report := MonthlyTotals(nil, []string{"2024-12", "2025-01"})
	assert.True(t, report.Complete())
	assert.Len(t, got, 2)
	assert.Equal(t, Totals{}, got["2024-12"])
}

func TestMalformedRecordsAreExcludedAndReported(t *testing.T) {
	bad := tx("bad", time.Time{}, core.Expense, 999, "Food")
	bad.RawDate = "31/02/2025"
	cancelled := tx("cancelled", d(2025, 1, 3), core.Expense, 400, "Food")
	cancelled.Status = core.StatusCancelled
	pending := tx("pending", d(2025, 1, 4), core.Expense, 100, "Food")
	pending.Status = core.StatusPending

	got, report := MonthlyTotals([]core.Transaction{bad, cancelled, pending}, []string{"2025-01"})

	assert.Equal(t, int64(100), got["2025-01"].Expense.Cents)
	require.False(t, report.Complete())
	require.Len(t, report.Excluded, 1)
	assert.Equal(t, "bad", report.Excluded[0].RecordID)
	assert.Equal(t, "31/02/2025", report.Excluded[0].Value)
	assert.True(t, errors.Is(report.Err(), core.ErrParse))
}

func TestNetWorthTimeline(t *testing.T) {
	series := []MonthTotals{
		{Month: "2025-01", Totals: Totals{Net: core.Money{Cents: 100}}},
		{Month: "2025-02", Totals: Totals{Net: core.Money{Cents: -50}}},
		{Month: "2025-03", Totals: Totals{Net: core.Money{Cents: 200}}},
	}
	got := NetWorthTimeline(series)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{100, 50, 250}, []int64{got[0].NetWorth.Cents, got[1].NetWorth.Cents, got[2].NetWorth.Cents})

	anchored := AnchorTimeline(got, core.Money{Cents: 1000})
	assert.Equal(t, []int64{850, 800, 1000}, []int64{anchored[0].NetWorth.Cents, anchored[1].NetWorth.Cents, anchored[2].NetWorth.Cents})
	assert.Equal(t, int64(100), got[0].NetWorth.Cents, "input must not be modified")
	assert.Nil(t, AnchorTimeline(nil, core.Money{Cents: 5}))
}

func TestNetWorthTimelineMonotoneWhenNetNonNegative(t *testing.T) {
	series := []MonthTotals{
		{Month: "a", Totals: Totals{Net: core.Money{Cents: 0}}},
		{Month: "b", Totals: Totals{Net: core.Money{Cents: 10}}},
		{Month: "c", Totals: Totals{Net: core.Money{Cents: 0}}},
	}
	got := NetWorthTimeline(series)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].NetWorth.Cents, got[i-1].NetWorth.Cents)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []core.Transaction{
		tx("1", d(2025, 1, 1), core.Expense, 100, "A"),
		tx("2", d(2025, 1, 2), core.Expense, 50, "B"),
		tx("3", d(2025, 1, 3), core.Expense, 30, "a"),
		tx("4", d(2025, 1, 4), core.Income, 999, "A"),
		tx("5", d(2025, 2, 1), core.Expense, 70, "B"),
	}

	got, report := CategoryBreakdown(txs[:4], core.Expense, AllTime)
	require.True(t, report.Complete())
	assert.Equal(t, []CategoryValue{
		{Category: "A", Value: core.Money{Cents: 130}, Count: 2},
		{Category: "B", Value: core.Money{Cents: 50}, Count: 1},
	}, got)

	jan, _ := CategoryBreakdown(txs, core.Expense, PeriodFilter("2025-01"))
	assert.Len(t, jan, 2)
	year, _ := CategoryBreakdown(txs, core.Expense, PeriodFilter("2025"))
	assert.Equal(t, "A", year[0].Category)
	assert.Equal(t, int64(120), year[1].Value.Cents)
	assert.Len(t, Top(year, 1), 1)
}

func TestRatios(t *testing.T) {
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"savings rate", SavingsRate(core.Money{Cents: 1000}, core.Money{Cents: 250}), 75},
		{"savings rate no income", SavingsRate(core.Money{}, core.Money{Cents: 250}), 0},
		{"savings rate overspent", SavingsRate(core.Money{Cents: 100}, core.Money{Cents: 150}), -50},
		{"debt ratio no debt", DebtToAssetRatio(core.Money{}, core.Money{Cents: 1000}), 0},
		{"debt ratio no assets", DebtToAssetRatio(core.Money{Cents: 500}, core.Money{}), 0},
		{"debt ratio", DebtToAssetRatio(core.Money{Cents: 500}, core.Money{Cents: 1000}), 50},
		{"change up", PercentChange(150, 100), 50},
		{"change down", PercentChange(50, 100), -50},
		{"change from zero positive", PercentChange(42, 0), 100},
		{"change from zero zero", PercentChange(0, 0), 0},
		{"change from zero negative", PercentChange(-3, 0), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, c.got, 1e-9)
		})
	}
}

func TestReconcileBalances(t *testing.T) {
	accounts := []core.Account{
		{ID: "a1", Name: "Cash", OpeningBalance: core.Money{Cents: 100}, Balance: core.Money{Cents: 100}},
		{ID: "a2", Name: "Bank", OpeningBalance: core.Money{Cents: 0}, Balance: core.Money{Cents: 700}},
	}
	t1 := tx("1", d(2025, 1, 1), core.Income, 1000, "Salary")
	t1.Account = "bank"
	t2 := tx("2", d(2025, 1, 2), core.Expense, 300, "Food")
	t2.Account = "Bank"
	t3 := tx("3", d(2025, 1, 3), core.Expense, 10, "Food")
	t3.Account = "Crypto"

	rec := ReconcileBalances(accounts, []core.Transaction{t1, t2, t3})
	assert.Equal(t, int64(100), rec.Balances["a1"].Cents)
	assert.Equal(t, int64(700), rec.Balances["a2"].Cents)
	assert.Empty(t, rec.Drift)
	assert.Equal(t, []string{"3"}, rec.Orphans)

	accounts[0].Balance = core.Money{Cents: 5}
	rec = ReconcileBalances(accounts, []core.Transaction{t1, t2})
	require.Len(t, rec.Drift, 1)
	assert.Equal(t, "a1", rec.Drift[0].AccountID)
}
