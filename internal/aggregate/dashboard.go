package aggregate

import (
	"sort"

	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/snapshot"
)

// Options size the dashboard views.
type Options struct {
	Months        int // trend length, including the current month
	TopCategories int
	Recent        int
}

// DefaultOptions are used when a field is zero.
var DefaultOptions = Options{Months: 6, TopCategories: 5, Recent: 10}

func (o Options) withDefaults() Options {
	if o.Months <= 0 {
		o.Months = DefaultOptions.Months
	}
	if o.TopCategories <= 0 {
		o.TopCategories = DefaultOptions.TopCategories
	}
	if o.Recent <= 0 {
		o.Recent = DefaultOptions.Recent
	}
	return o
}

// Dashboard is the overview of a snapshot.
type Dashboard struct {
	Month         string             `json:"month"`
	BalanceSheet  BalanceSheet       `json:"balance_sheet"`
	Current       Totals             `json:"current"`
	Previous      Totals             `json:"previous"`
	IncomeChange  float64            `json:"income_change"`
	ExpenseChange float64            `json:"expense_change"`
	SavingsRate   float64            `json:"savings_rate"`
	Trend         []MonthTotals      `json:"trend"`
	CashFlow      []TimelinePoint    `json:"cash_flow"`
	NetWorth      []TimelinePoint    `json:"net_worth"`
	TopExpenses   []CategoryValue    `json:"top_expenses"`
	Recent        []core.Transaction `json:"recent"`
	Report
}

// BuildDashboard computes the dashboard for the snapshot's month. The trend
// covers the months ending at AsOf; Previous is the month before AsOf.
func BuildDashboard(s snapshot.Snapshot, opts Options) Dashboard {
	opts = opts.withDefaults()
	cur := period.KeyOf(s.AsOf)

	keys := period.MonthsBack(opts.Months, s.AsOf)
	prevKey := cur.Add(-1).String()
	if opts.Months < 2 {
		keys = append([]string{prevKey}, keys...)
	}
	totals, report := MonthlyTotals(s.Transactions, keys)
	series := Series(period.MonthsBack(opts.Months, s.AsOf), totals)

	bs := ComputeBalanceSheet(s.Accounts, s.Holdings, s.Debts, s.HoldingIssues...)
	current, previous := totals[cur.String()], totals[prevKey]
	cashFlow := NetWorthTimeline(series)
	top, _ := CategoryBreakdown(s.Transactions, core.Expense, PeriodFilter(cur.String()))

	return Dashboard{
		Month:         cur.String(),
		BalanceSheet:  bs,
		Current:       current,
		Previous:      previous,
		IncomeChange:  MoneyChange(current.Income, previous.Income),
		ExpenseChange: MoneyChange(current.Expense, previous.Expense),
		SavingsRate:   SavingsRate(current.Income, current.Expense),
		Trend:         series,
		CashFlow:      cashFlow,
		NetWorth:      AnchorTimeline(cashFlow, bs.NetWorth),
		TopExpenses:   Top(top, opts.TopCategories),
		Recent:        Recent(s.Transactions, opts.Recent),
		Report:        report.Merge(bs.Report),
	}
}

// Recent returns the n latest usable transactions, newest first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	usable, _ := Usable(txs)
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Date.After(usable[j].Date) })
	if n >= 0 && len(usable) > n {
		usable = usable[:n]
	}
	return usable
}

// Analytics is the range view: trend plus income and expense breakdowns over
// the same months.
type Analytics struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Trend          []MonthTotals   `json:"trend"`
	Total          Totals          `json:"total"`
	AverageIncome  core.Money      `json:"average_income"`
	AverageExpense core.Money      `json:"average_expense"`
	SavingsRate    float64         `json:"savings_rate"`
	Income         []CategoryValue `json:"income"`
	Expenses       []CategoryValue `json:"expenses"`
	Report
}

// BuildAnalytics aggregates the months ending at the snapshot's month.
func BuildAnalytics(s snapshot.Snapshot, months int) Analytics {
	if months <= 0 {
		months = DefaultOptions.Months
	}
	keys := period.MonthsBack(months, s.AsOf)
	totals, report := MonthlyTotals(s.Transactions, keys)
	series := Series(keys, totals)

	a := Analytics{From: keys[0], To: keys[len(keys)-1], Trend: series, Report: report}
	for _, m := range series {
		a.Total.Income = a.Total.Income.Add(m.Income)
		a.Total.Expense = a.Total.Expense.Add(m.Expense)
	}
	a.Total.Net = a.Total.Income.Sub(a.Total.Expense)
	a.AverageIncome = core.Money{Cents: a.Total.Income.Cents / int64(months)}
	a.AverageExpense = core.Money{Cents: a.Total.Expense.Cents / int64(months)}
	a.SavingsRate = SavingsRate(a.Total.Income, a.Total.Expense)

	inRange := make([]core.Transaction, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		if _, ok := totals[period.MonthKey(tx.Date)]; ok {
			inRange = append(inRange, tx)
		}
	}
	a.Income, _ = CategoryBreakdown(inRange, core.Income, AllTime)
	a.Expenses, _ = CategoryBreakdown(inRange, core.Expense, AllTime)
	return a
}
