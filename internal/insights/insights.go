// Package insights derives the alert feed shown next to the dashboard.
package insights

import (
	"fmt"
	"sort"

	"dompet/internal/budget"
	"dompet/internal/core"
	"dompet/internal/services"
	"dompet/internal/snapshot"
)

type Severity string

const (
	High   Severity = "high"
	Medium Severity = "medium"
	Low    Severity = "low"
	Info   Severity = "info"
)

type Kind string

const (
	BudgetExceeded Kind = "budget_exceeded"
	BudgetWarning  Kind = "budget_warning"
	GoalAlmost     Kind = "goal_almost"
	GoalMilestone  Kind = "goal_milestone"
	BillDueSoon    Kind = "bill_due_soon"
)

// Alert is one entry of the feed. Only the fields relevant to Kind are set.
type Alert struct {
	Kind     Kind     `json:"type"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`

	Category string      `json:"category,omitempty"`
	Spent    *core.Money `json:"spent,omitempty"`
	Budget   *core.Money `json:"budget,omitempty"`

	GoalName string  `json:"goal_name,omitempty"`
	Progress float64 `json:"progress,omitempty"`

	BillName string      `json:"bill_name,omitempty"`
	Amount   *core.Money `json:"amount,omitempty"`
	DaysLeft int         `json:"days_left,omitempty"`
}

var milestones = []float64{50, 75}

// Budgets alerts on allocations at or past 80% utilization.
func Budgets(lines []budget.Line) []Alert {
	var out []Alert
	for _, l := range lines {
		spent, amount := l.Spent, l.Amount
		switch budget.StatusOf(spent, amount) {
		case budget.Over:
			out = append(out, Alert{
				Kind:     BudgetExceeded,
				Severity: High,
				Title:    fmt.Sprintf("%s budget exceeded", l.Category),
				Message:  fmt.Sprintf("%.0f%% of the %s budget is spent", l.Utilization, l.Category),
				Category: l.Category,
				Spent:    &spent,
				Budget:   &amount,
			})
		case budget.Warning:
			out = append(out, Alert{
				Kind:     BudgetWarning,
				Severity: Medium,
				Title:    fmt.Sprintf("%s budget almost used up", l.Category),
				Message:  fmt.Sprintf("%.0f%% of the %s budget is spent", l.Utilization, l.Category),
				Category: l.Category,
				Spent:    &spent,
				Budget:   &amount,
			})
		}
	}
	return out
}

// Goals alerts on unachieved goals close to their target or inside a
// milestone band (50-60%, 75-85%).
func Goals(goals []core.FinancialGoal) []Alert {
	var out []Alert
	for _, g := range goals {
		if g.IsAchieved || g.TargetAmount.Cents <= 0 {
			continue
		}
		progress := float64(g.CurrentAmount.Cents) / float64(g.TargetAmount.Cents) * 100
		if progress >= 90 && progress < 100 {
			out = append(out, Alert{
				Kind:     GoalAlmost,
				Severity: Low,
				Title:    "Goal almost reached",
				Message:  fmt.Sprintf("Goal %q is at %.0f%%", g.Name, progress),
				GoalName: g.Name,
				Progress: progress,
			})
			continue
		}
		for _, m := range milestones {
			if progress >= m && progress < m+10 {
				out = append(out, Alert{
					Kind:     GoalMilestone,
					Severity: Info,
					Title:    fmt.Sprintf("%.0f%% milestone reached", m),
					Message:  fmt.Sprintf("Goal %q passed %.0f%%", g.Name, m),
					GoalName: g.Name,
					Progress: progress,
				})
			}
		}
	}
	return out
}

// Bills alerts on unpaid expense bills due within the next three days. Bills due
// today or already overdue are left to the bill view.
func Bills(bills []services.Bill, today int) []Alert {
	var out []Alert
	for _, b := range bills {
		if b.Paid || b.Type == core.Income {
			continue
		}
		days := b.DueDate.Day() - today
		if days <= 0 || days > services.SoonWindow {
			continue
		}
		amount := b.Amount
		out = append(out, Alert{
			Kind:     BillDueSoon,
			Severity: Medium,
			Title:    "Bill due soon",
			Message:  fmt.Sprintf("%q is due in %d day(s)", b.Name, days),
			BillName: b.Name,
			Amount:   &amount,
			DaysLeft: days,
		})
	}
	return out
}

// FromSnapshot builds the full feed, most severe first.
func FromSnapshot(s snapshot.Snapshot) []Alert {
	lines, _ := budget.Lines(s.Budgets, s.Transactions)
	bills := services.BillsFor(s.Recurring, s.Payments, s.AsOf)

	alerts := Budgets(lines)
	alerts = append(alerts, Goals(s.Goals)...)
	alerts = append(alerts, Bills(bills, s.AsOf.Day())...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return rank(alerts[i].Severity) < rank(alerts[j].Severity)
	})
	return alerts
}

func rank(s Severity) int {
	switch s {
	case High:
		return 0
	case Medium:
		return 1
	case Low:
		return 2
	default:
		return 3
	}
}
