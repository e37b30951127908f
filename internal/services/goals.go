package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

type GoalService struct {
	store  ports.GoalStore
	now    Clock
	logger *slog.Logger
}

func NewGoalService(store ports.GoalStore, now Clock, logger *slog.Logger) *GoalService {
	return &GoalService{store: store, now: orNow(now), logger: orDefault(logger)}
}

// Contribute adds a positive amount to a goal. Contributions only ever
// increase the current amount; the goal is achieved once it reaches the
// target and stays achieved on over-contribution.
func (s *GoalService) Contribute(ctx context.Context, goalID string, amount core.Money, notes string) (core.FinancialGoal, error) {
	if err := amount.Validate(); err != nil {
		return core.FinancialGoal{}, core.NewInvalidInput("amount", err.Error())
	}
	g, err := s.store.AddContribution(ctx, core.GoalContribution{
		GoalID: goalID,
		Amount: amount,
		Date:   truncateDay(s.now()),
		Notes:  notes,
	})
	if err != nil {
		return core.FinancialGoal{}, fmt.Errorf("add contribution: %w", err)
	}
	s.logger.InfoContext(ctx, "Goal contribution recorded",
		"goal_id", goalID, "amount_cents", amount.Cents, "achieved", g.IsAchieved)
	return g, nil
}

// Progress is the derived state of a goal.
type Progress struct {
	core.FinancialGoal
	Percentage      float64    `json:"percentage"`
	Remaining       core.Money `json:"remaining"`
	MonthsLeft      int        `json:"months_left"`
	RequiredMonthly core.Money `json:"required_monthly"`
}

// ProgressOf derives percentage (capped at 100), the amount still missing,
// whole months until the target date and the monthly contribution that
// would close the gap.
func ProgressOf(g core.FinancialGoal, now time.Time) Progress {
	p := Progress{FinancialGoal: g}
	if g.TargetAmount.Cents > 0 {
		p.Percentage = float64(g.CurrentAmount.Cents) / float64(g.TargetAmount.Cents) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	if rem := g.TargetAmount.Sub(g.CurrentAmount); rem.Cents > 0 {
		p.Remaining = rem
	}
	p.MonthsLeft = monthsBetween(now, g.TargetDate)
	if p.Remaining.Cents > 0 {
		months := int64(p.MonthsLeft)
		if months < 1 {
			months = 1
		}
		p.RequiredMonthly = core.Money{Cents: (p.Remaining.Cents + months - 1) / months}
	}
	return p
}

// Progress lists every goal with its derived state.
func (s *GoalService) Progress(ctx context.Context) ([]Progress, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	now := s.now()
	out := make([]Progress, len(goals))
	for i, g := range goals {
		out[i] = ProgressOf(g, now)
	}
	return out, nil
}

// monthsBetween counts whole calendar months from a to b, zero when b is not
// after a.
func monthsBetween(a, b time.Time) int {
	n := 0
	for k, end := period.KeyOf(a), period.KeyOf(b); k.Before(end); k = k.Add(1) {
		n++
	}
	return n
}
