package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

// Terms applied to a debt opened by a credit purchase.
const (
	creditCardRate      = 2.5
	payLaterRate        = 1.5
	creditInstallments  = 10
	creditDueDay        = 5
	creditPaymentFactor = 10 // monthly payment is amount / factor
)

// LedgerWriter is the part of the store TransactionService writes to.
type LedgerWriter interface {
	ports.TransactionStore
	ports.DebtStore
}

// TransactionService creates and edits transactions. An expense paid by
// credit card or pay-later opens or grows the debt owed to the account it
// was charged to; this happens once, at creation.
type TransactionService struct {
	store     LedgerWriter
	publisher Publisher
	now       Clock
	logger    *slog.Logger
}

func NewTransactionService(store LedgerWriter, publisher Publisher, now Clock, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		now:       orNow(now),
		logger:    orDefault(logger),
	}
}

// Create validates and stores t. When t is a credit expense the returned
// debt is the one opened or incremented, otherwise nil.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, *core.Debt, error) {
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, nil, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, nil, fmt.Errorf("save transaction: %w", err)
	}

	var debt *core.Debt
	if created.Type == core.Expense && created.PaymentMethod.IsCredit() && created.Status.Counts() {
		d, err := s.applyCredit(ctx, created)
		if err != nil {
			// The transaction stands; the debt can be fixed by an edit.
			s.logger.ErrorContext(ctx, "Failed to record credit debt",
				"transaction_id", created.ID, "account", created.Account, "error", err)
		} else {
			debt = &d
		}
	}

	notify(ctx, s.publisher, s.logger, amqp.NewLedgerEvent(amqp.TransactionCreated, created.ID, created.Account))
	return created, debt, nil
}

// applyCredit charges t to the active debt owed to its account. Only the
// outstanding balance grows; the principal stays what the debt opened with.
func (s *TransactionService) applyCredit(ctx context.Context, t core.Transaction) (core.Debt, error) {
	d, opened, err := s.store.ChargeCreditor(ctx, NewCreditDebt(t, s.now()))
	if err != nil {
		return core.Debt{}, err
	}
	msg := "Credit purchase added to debt"
	if opened {
		msg = "Debt opened by credit purchase"
	}
	s.logger.InfoContext(ctx, msg, "debt_id", d.ID, "creditor", d.Creditor, "balance_cents", d.CurrentBalance.Cents)
	return d, nil
}

// NewCreditDebt returns the debt opened by a first credit purchase on an
// account.
func NewCreditDebt(t core.Transaction, now time.Time) core.Debt {
	d := core.Debt{
		DebtType:              core.DebtInstallment,
		Creditor:              t.Account,
		PrincipalAmount:       t.Amount,
		CurrentBalance:        t.Amount,
		InterestRate:          payLaterRate,
		MonthlyPayment:        core.Money{Cents: t.Amount.Cents / creditPaymentFactor},
		RemainingInstallments: creditInstallments,
		DueDay:                creditDueDay,
		StartDate:             truncateDay(now),
		Notes:                 "Opened by " + t.Description,
		IsActive:              true,
	}
	if t.PaymentMethod == core.PaymentCredit {
		d.DebtType = core.DebtCreditCard
		d.InterestRate = creditCardRate
	}
	return d
}

// Update replaces a transaction. Credit debts are not re-derived.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) error {
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	notify(ctx, s.publisher, s.logger, amqp.NewLedgerEvent(amqp.TransactionUpdated, t.ID, t.Account))
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	notify(ctx, s.publisher, s.logger, amqp.NewLedgerEvent(amqp.TransactionDeleted, id, t.Account))
	return nil
}

// List returns transactions of one month, or all when monthYear is empty.
func (s *TransactionService) List(ctx context.Context, monthYear string, f ports.TransactionFilter) ([]core.Transaction, error) {
	if monthYear != "" {
		k, err := period.ParseKey(monthYear)
		if err != nil {
			return nil, core.NewInvalidInput("month_year", "month_year must be YYYY-MM")
		}
		f.From = k.Start()
		f.To = k.Add(1).Start()
	}
	return s.store.ListTransactions(ctx, f)
}
