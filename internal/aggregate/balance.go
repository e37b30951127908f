package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"dompet/internal/core"
)

// BalanceSheet is the present financial position.
type BalanceSheet struct {
	LiquidAssets core.Money                      `json:"liquid_assets"`
	Investments  core.Money                      `json:"investments"`
	TotalAssets  core.Money                      `json:"total_assets"`
	Liabilities  core.Money                      `json:"liabilities"`
	NetWorth     core.Money                      `json:"net_worth"`
	ByKind       map[core.HoldingKind]core.Money `json:"investments_by_kind"`
	DebtToAsset  float64                         `json:"debt_to_asset_ratio"`
	// Report lists stored holdings that could not be decoded and so are
	// not counted in Investments.
	Report
}

// ComputeBalanceSheet sums account balances and holding values as assets and
// the current balance of active debts as liabilities.
// Holdings that failed to decode are passed as issues and end up in the
// sheet's Report.
func ComputeBalanceSheet(accounts []core.Account, holdings []core.Holding, debts []core.Debt, issues ...*core.ParseError) BalanceSheet {
	bs := BalanceSheet{ByKind: map[core.HoldingKind]core.Money{}, Report: Report{Excluded: issues}}
	for _, a := range accounts {
		bs.LiquidAssets = bs.LiquidAssets.Add(a.Balance)
	}
	for _, h := range holdings {
		v := h.CurrentValue()
		bs.Investments = bs.Investments.Add(v)
		bs.ByKind[h.Kind()] = bs.ByKind[h.Kind()].Add(v)
	}
	for _, d := range debts {
		if d.IsActive {
			bs.Liabilities = bs.Liabilities.Add(d.CurrentBalance)
		}
	}
	bs.TotalAssets = bs.LiquidAssets.Add(bs.Investments)
	bs.NetWorth = bs.TotalAssets.Sub(bs.Liabilities)
	bs.DebtToAsset = DebtToAssetRatio(bs.Liabilities, bs.TotalAssets)
	return bs
}

// AccountDrift is an account whose stored balance differs from the balance
// derived from its transactions.
type AccountDrift struct {
	AccountID string     `json:"account_id"`
	Name      string     `json:"name"`
	Stored    core.Money `json:"stored"`
	Derived   core.Money `json:"derived"`
}

// Reconciliation is the derived balance of every account.
type Reconciliation struct {
	Balances map[string]core.Money `json:"balances"` // by account ID
	Drift    []AccountDrift        `json:"drift,omitempty"`
	// Orphans are transactions whose account matches no known account.
	Orphans []string `json:"orphans,omitempty"`
	Report
}

// ReconcileBalances derives each account's balance as its opening balance
// plus the signed sum of its transactions. Accounts match by case-folded
// name.
func ReconcileBalances(accounts []core.Account, txs []core.Transaction) Reconciliation {
	usable, report := Usable(txs)
	rec := Reconciliation{Balances: make(map[string]core.Money, len(accounts)), Report: report}

	byName := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byName[core.NameKey(a.Name)] = a.ID
		rec.Balances[a.ID] = a.OpeningBalance
	}
	for _, tx := range usable {
		id, ok := byName[core.NameKey(tx.Account)]
		if !ok {
			rec.Orphans = append(rec.Orphans, tx.ID)
			continue
		}
		rec.Balances[id] = core.Money{Cents: rec.Balances[id].Cents + tx.Type.Sign()*tx.Amount.Cents}
	}
	for _, a := range accounts {
		if derived := rec.Balances[a.ID]; derived != a.Balance {
			rec.Drift = append(rec.Drift, AccountDrift{AccountID: a.ID, Name: a.Name, Stored: a.Balance, Derived: derived})
		}
	}
	return rec
}

// HoldingValue is one position of a portfolio summary.
type HoldingValue struct {
	ID      string           `json:"id"`
	Kind    core.HoldingKind `json:"kind"`
	Cost    core.Money       `json:"cost"`
	Value   core.Money       `json:"value"`
	Gain    core.Money       `json:"gain"`
	GainPct float64          `json:"gain_pct"`
}

type Portfolio struct {
	Holdings  []HoldingValue `json:"holdings"`
	TotalCost core.Money     `json:"total_cost"`
	Value     core.Money     `json:"value"`
	Gain      core.Money     `json:"gain"`
	GainPct   float64        `json:"gain_pct"`
}

// Summarize values every holding and the whole portfolio. Holdings are
// ordered by value descending.
func Summarize(holdings []core.Holding) Portfolio {
	var p Portfolio
	for _, h := range holdings {
		cost, value := h.CostBasis(), h.CurrentValue()
		p.Holdings = append(p.Holdings, HoldingValue{
			ID:      h.HoldingID(),
			Kind:    h.Kind(),
			Cost:    cost,
			Value:   value,
			Gain:    value.Sub(cost),
			GainPct: gainPct(cost, value),
		})
		p.TotalCost = p.TotalCost.Add(cost)
		p.Value = p.Value.Add(value)
	}
	sort.SliceStable(p.Holdings, func(i, j int) bool { return p.Holdings[i].Value.Cents > p.Holdings[j].Value.Cents })
	p.Gain = p.Value.Sub(p.TotalCost)
	p.GainPct = gainPct(p.TotalCost, p.Value)
	return p
}

func gainPct(cost, value core.Money) float64 {
	if cost.Cents <= 0 {
		return 0
	}
	f, _ := value.Decimal().Sub(cost.Decimal()).Div(cost.Decimal()).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// CategoryStats is the per-category part of Stats.
type CategoryStats struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Count   int        `json:"count"`
}

// Stats summarize a transaction list.
type Stats struct {
	Totals
	Count      int                      `json:"count"`
	ByCategory map[string]CategoryStats `json:"by_category"`
	Report
}

// TransactionStats totals the usable transactions overall and per category.
func TransactionStats(txs []core.Transaction) Stats {
	usable, report := Usable(txs)
	st := Stats{ByCategory: map[string]CategoryStats{}, Report: report}
	names := map[string]string{}
	for _, tx := range usable {
		st.add(tx)
		st.Count++

		key := core.NameKey(tx.Category)
		name, ok := names[key]
		if !ok {
			name = tx.Category
			names[key] = name
		}
		c := st.ByCategory[name]
		if tx.Type == core.Income {
			c.Income = c.Income.Add(tx.Amount)
		} else {
			c.Expense = c.Expense.Add(tx.Amount)
		}
		c.Count++
		st.ByCategory[name] = c
	}
	return st
}
