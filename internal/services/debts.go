package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/amortization"
	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

type DebtService struct {
	store  ports.DebtStore
	now    Clock
	logger *slog.Logger
}

func NewDebtService(store ports.DebtStore, now Clock, logger *slog.Logger) *DebtService {
	return &DebtService{store: store, now: orNow(now), logger: orDefault(logger)}
}

// Pay reduces a debt's balance by amount, floored at zero, and consumes one
// installment. A debt paid down to zero becomes inactive.
func (s *DebtService) Pay(ctx context.Context, debtID string, amount core.Money) (core.Debt, error) {
	if err := amount.Validate(); err != nil {
		return core.Debt{}, core.NewInvalidInput("amount", err.Error())
	}
	d, err := s.store.GetDebt(ctx, debtID)
	if err != nil {
		return core.Debt{}, fmt.Errorf("load debt: %w", err)
	}

	d = ApplyPayment(d, amount)
	if err := s.store.UpdateDebt(ctx, d); err != nil {
		return core.Debt{}, fmt.Errorf("update debt: %w", err)
	}
	s.logger.InfoContext(ctx, "Debt payment recorded",
		"debt_id", d.ID,
		"amount_cents", amount.Cents,
		"balance_cents", d.CurrentBalance.Cents,
		"remaining_installments", d.RemainingInstallments,
		"active", d.IsActive)
	return d, nil
}

// ApplyPayment returns d after a payment of amount.
func ApplyPayment(d core.Debt, amount core.Money) core.Debt {
	d.CurrentBalance = d.CurrentBalance.Sub(amount)
	if d.CurrentBalance.Cents < 0 {
		d.CurrentBalance = core.Money{}
	}
	if d.RemainingInstallments > 0 {
		d.RemainingInstallments--
	}
	if d.CurrentBalance.Cents == 0 {
		d.IsActive = false
	}
	return d
}

// Projection is the outlook of one debt.
type Projection struct {
	core.Debt
	PayoffDate   time.Time            `json:"payoff_date"`
	NextDueDate  time.Time            `json:"next_due_date"`
	DueStatus    DueStatus            `json:"due_status"`
	PaidPercent  float64              `json:"paid_percent"`
	Amortization *amortization.Result `json:"amortization,omitempty"`
}

// ProjectionOf projects the payoff date as remaining installments from now
// and the amortization of the current balance over those installments.
func ProjectionOf(d core.Debt, now time.Time) Projection {
	p := Projection{
		Debt:        d,
		PayoffDate:  period.AddMonths(truncateDay(now), d.RemainingInstallments),
		NextDueDate: period.NextOccurrence(d.DueDay, now),
		DueStatus:   DueStatusOf(d.DueDay, now.Day()),
	}
	if d.PrincipalAmount.Cents > 0 {
		paid := d.PrincipalAmount.Sub(d.CurrentBalance)
		p.PaidPercent = float64(paid.Cents) / float64(d.PrincipalAmount.Cents) * 100
	}
	if res, err := amortization.Calculate(d.CurrentBalance, d.InterestRate, d.RemainingInstallments); err == nil {
		p.Amortization = &res
	}
	return p
}

// Projections lists active debts with their outlook.
func (s *DebtService) Projections(ctx context.Context) ([]Projection, error) {
	debts, err := s.store.ListDebts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	now := s.now()
	var out []Projection
	for _, d := range debts {
		if d.IsActive {
			out = append(out, ProjectionOf(d, now))
		}
	}
	return out, nil
}
