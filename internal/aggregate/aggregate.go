// Package aggregate folds ledger records into derived figures: monthly
// buckets, category rollups, net-worth timelines and the ratios shown on
// every view. All functions are pure and never modify their inputs.
//
// Cancelled transactions are ignored. Malformed transactions are never
// partially counted: they are left out and listed in the returned Report so
// callers can tell "zero because no data" from "zero because of bad data".
package aggregate

import (
	"errors"
	"sort"
	"strings"

	"dompet/internal/core"
	"dompet/internal/period"
)

// Totals are the income, expense and net of a set of transactions.
type Totals struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Net     core.Money `json:"net"`
}

func (t *Totals) add(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		t.Income = t.Income.Add(tx.Amount)
	case core.Expense:
		t.Expense = t.Expense.Add(tx.Amount)
	}
	t.Net = t.Income.Sub(t.Expense)
}

// MonthTotals is one bucket of an ordered monthly series.
type MonthTotals struct {
	Month string `json:"month"`
	Totals
}

// Report lists the records excluded from a computation.
type Report struct {
	Excluded []*core.ParseError `json:"excluded,omitempty"`
}

// Complete reports whether every record took part.
func (r Report) Complete() bool { return len(r.Excluded) == 0 }

// Err joins the exclusions into one error, or returns nil.
func (r Report) Err() error {
	if r.Complete() {
		return nil
	}
	errs := make([]error, len(r.Excluded))
	for i, e := range r.Excluded {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Merge returns a report holding the exclusions of both, each record once.
func (r Report) Merge(o Report) Report {
	if o.Complete() {
		return r
	}
	key := func(e *core.ParseError) string { return e.RecordID + "/" + e.Field }
	seen := make(map[string]bool, len(r.Excluded))
	out := Report{Excluded: append([]*core.ParseError(nil), r.Excluded...)}
	for _, e := range r.Excluded {
		seen[key(e)] = true
	}
	for _, e := range o.Excluded {
		if !seen[key(e)] {
			seen[key(e)] = true
			out.Excluded = append(out.Excluded, e)
		}
	}
	return out
}

// Usable splits transactions into those that take part in aggregation and a
// report of the malformed ones. Cancelled transactions are dropped silently.
func Usable(txs []core.Transaction) ([]core.Transaction, Report) {
	var (
		out    = make([]core.Transaction, 0, len(txs))
		report Report
	)
	for _, tx := range txs {
		if err := tx.Check(); err != nil {
			var pe *core.ParseError
			if errors.As(err, &pe) {
				report.Excluded = append(report.Excluded, pe)
			}
			continue
		}
		if !tx.Status.Counts() {
			continue
		}
		out = append(out, tx)
	}
	return out, report
}

// MonthlyTotals buckets transactions by month for the given keys. Every key
// is present in the result; months without transactions are zero.
// Transactions outside the keys are not counted anywhere.
func MonthlyTotals(txs []core.Transaction, monthKeys []string) (map[string]Totals, Report) {
	out := make(map[string]Totals, len(monthKeys))
	for _, k := range monthKeys {
		out[k] = Totals{}
	}
	usable, report := Usable(txs)
	for _, tx := range usable {
		k := period.MonthKey(tx.Date)
		t, ok := out[k]
		if !ok {
			continue
		}
		t.add(tx)
		out[k] = t
	}
	return out, report
}

// Series orders a MonthlyTotals result by the given keys.
func Series(monthKeys []string, totals map[string]Totals) []MonthTotals {
	out := make([]MonthTotals, len(monthKeys))
	for i, k := range monthKeys {
		out[i] = MonthTotals{Month: k, Totals: totals[k]}
	}
	return out
}

// Sum totals the usable transactions without bucketing.
func Sum(txs []core.Transaction) (Totals, Report) {
	var t Totals
	usable, report := Usable(txs)
	for _, tx := range usable {
		t.add(tx)
	}
	return t, report
}

// TimelinePoint is the cumulative net at the end of a month.
type TimelinePoint struct {
	Month    string     `json:"month"`
	NetWorth core.Money `json:"net_worth"`
}

// NetWorthTimeline is the running sum of net across the ordered series,
// starting from zero. It is a relative cash-flow trajectory, not an absolute
// net worth; see AnchorTimeline.
func NetWorthTimeline(series []MonthTotals) []TimelinePoint {
	out := make([]TimelinePoint, len(series))
	var running core.Money
	for i, m := range series {
		running = running.Add(m.Net)
		out[i] = TimelinePoint{Month: m.Month, NetWorth: running}
	}
	return out
}

// AnchorTimeline shifts a relative timeline so that its last point equals
// current, the present assets minus liabilities. Earlier points are current
// less the cash flow that followed them; historical valuations of holdings
// and debts are not modeled.
func AnchorTimeline(points []TimelinePoint, current core.Money) []TimelinePoint {
	if len(points) == 0 {
		return nil
	}
	shift := current.Sub(points[len(points)-1].NetWorth)
	out := make([]TimelinePoint, len(points))
	for i, p := range points {
		out[i] = TimelinePoint{Month: p.Month, NetWorth: p.NetWorth.Add(shift)}
	}
	return out
}

// PeriodFilter restricts a computation to one month ("2025-03"), one year
// ("2025") or, when empty, all time.
type PeriodFilter string

const AllTime PeriodFilter = ""

func (f PeriodFilter) matches(tx core.Transaction) bool {
	switch {
	case f == AllTime:
		return true
	case len(f) == 4:
		return period.MonthKey(tx.Date)[:4] == string(f)
	default:
		return period.MonthKey(tx.Date) == string(f)
	}
}

// CategoryValue is one row of a category breakdown.
type CategoryValue struct {
	Category string     `json:"category"`
	Value    core.Money `json:"value"`
	Count    int        `json:"count"`
}

// CategoryBreakdown sums transactions of type typ per category, sorted by
// value descending. Categories match case-insensitively; the first spelling
// seen is kept. Ties order by category name.
func CategoryBreakdown(txs []core.Transaction, typ core.TransactionType, filter PeriodFilter) ([]CategoryValue, Report) {
	usable, report := Usable(txs)
	index := map[string]int{}
	var out []CategoryValue
	for _, tx := range usable {
		if tx.Type != typ || !filter.matches(tx) {
			continue
		}
		key := core.NameKey(tx.Category)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategoryValue{Category: strings.TrimSpace(tx.Category)})
		}
		out[i].Value = out[i].Value.Add(tx.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value.Cents != out[j].Value.Cents {
			return out[i].Value.Cents > out[j].Value.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out, report
}

// Top returns at most n rows of a sorted breakdown.
func Top(rows []CategoryValue, n int) []CategoryValue {
	if n >= 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// SavingsRate is the share of income kept, in percent. Zero income yields 0.
func SavingsRate(income, expense core.Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return float64(income.Cents-expense.Cents) / float64(income.Cents) * 100
}

// DebtToAssetRatio is liabilities over assets, in percent. Non-positive
// assets yield 0.
func DebtToAssetRatio(liabilities, assets core.Money) float64 {
	if assets.Cents <= 0 {
		return 0
	}
	return float64(liabilities.Cents) / float64(assets.Cents) * 100
}

// PercentChange is the relative change from previous to current, in percent.
// A zero baseline yields 100 when current is positive and 0 otherwise.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// MoneyChange is PercentChange over two amounts.
func MoneyChange(current, previous core.Money) float64 {
	return PercentChange(float64(current.Cents), float64(previous.Cents))
}
