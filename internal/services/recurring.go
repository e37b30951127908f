package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/period"
	"dompet/internal/ports"
)

// RecurringEngine materializes recurring definitions into transactions, at
// most once per (definition, month).
type RecurringEngine struct {
	store     ports.RecurringStore
	publisher Publisher
	now       Clock
	logger    *slog.Logger
}

func NewRecurringEngine(store ports.RecurringStore, publisher Publisher, now Clock, logger *slog.Logger) *RecurringEngine {
	return &RecurringEngine{
		store:     store,
		publisher: publisher,
		now:       orNow(now),
		logger:    orDefault(logger),
	}
}

// MarkPaid creates the transaction and payment record of def for monthYear.
// The store performs the existence check and both inserts as one unit, so
// concurrent calls for the same month yield one success and
// *core.AlreadyPaidError for the rest.
func (e *RecurringEngine) MarkPaid(ctx context.Context, recurringID, monthYear string) (core.RecurringPayment, core.Transaction, error) {
	if !period.Valid(monthYear) {
		return core.RecurringPayment{}, core.Transaction{}, core.NewInvalidInput("month_year", "month_year must be YYYY-MM")
	}
	def, err := e.store.GetRecurringDefinition(ctx, recurringID)
	if err != nil {
		return core.RecurringPayment{}, core.Transaction{}, fmt.Errorf("load recurring definition: %w", err)
	}
	return e.markPaid(ctx, def, monthYear)
}

func (e *RecurringEngine) markPaid(ctx context.Context, def core.RecurringDefinition, monthYear string) (core.RecurringPayment, core.Transaction, error) {
	today := truncateDay(e.now())
	tx := core.Transaction{
		Date:        today,
		Description: def.Name,
		Amount:      def.Amount,
		Type:        def.Type,
		Category:    def.Category,
		Account:     def.Account,
		Status:      core.StatusCompleted,
		Notes:       fmt.Sprintf("Recurring payment for %s", monthYear),
		Tags:        []string{"recurring"},
	}
	p := core.RecurringPayment{
		RecurringID: def.ID,
		MonthYear:   monthYear,
		PaymentDate: today,
		Amount:      def.Amount,
	}

	p, tx, err := e.store.MarkRecurringPaid(ctx, p, tx)
	if err != nil {
		return core.RecurringPayment{}, core.Transaction{}, err
	}

	e.logger.InfoContext(ctx, "Recurring definition marked paid",
		"recurring_id", def.ID,
		"month_year", monthYear,
		"transaction_id", tx.ID,
		"amount_cents", def.Amount.Cents)

	ev := amqp.NewLedgerEvent(amqp.RecurringPaid, p.ID, def.Account)
	ev.MonthYear = monthYear
	notify(ctx, e.publisher, e.logger, ev)
	return p, tx, nil
}

// GenerateResult reports one batch run.
type GenerateResult struct {
	MonthYear   string                  `json:"month_year"`
	Created     []core.RecurringPayment `json:"created"`
	AlreadyPaid []string                `json:"already_paid"`
	NotDue      []string                `json:"not_due"`
	Failed      map[string]string       `json:"failed,omitempty"`
}

// GenerateDue marks paid every active definition that is due for monthYear
// and not yet paid. It is safe to run repeatedly: definitions already paid
// are reported, not duplicated. A store outage aborts the run.
func (e *RecurringEngine) GenerateDue(ctx context.Context, monthYear string) (GenerateResult, error) {
	key, err := period.ParseKey(monthYear)
	if err != nil {
		return GenerateResult{}, core.NewInvalidInput("month_year", "month_year must be YYYY-MM")
	}
	defs, err := e.store.ListRecurringDefinitions(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list recurring definitions: %w", err)
	}

	now := e.now()
	res := GenerateResult{MonthYear: monthYear, Failed: map[string]string{}}
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		checker, err := GetDuenessChecker(def.Frequency)
		if err != nil {
			res.Failed[def.ID] = err.Error()
			continue
		}
		if !checker.IsDue(def, key, now) {
			res.NotDue = append(res.NotDue, def.ID)
			continue
		}

		p, _, err := e.markPaid(ctx, def, monthYear)
		switch {
		case err == nil:
			res.Created = append(res.Created, p)
		case errors.Is(err, core.ErrAlreadyPaid):
			res.AlreadyPaid = append(res.AlreadyPaid, def.ID)
		case core.IsRetryable(err):
			return res, err
		default:
			res.Failed[def.ID] = err.Error()
		}
	}

	e.logger.InfoContext(ctx, "Recurring generation complete",
		"month_year", monthYear,
		"created", len(res.Created),
		"already_paid", len(res.AlreadyPaid),
		"not_due", len(res.NotDue),
		"failed", len(res.Failed))
	return res, nil
}

// Bill is a recurring definition with its state for one month.
type Bill struct {
	core.RecurringDefinition
	MonthYear string    `json:"month_year"`
	Paid      bool      `json:"paid"`
	PaymentID string    `json:"payment_id,omitempty"`
	DueDate   time.Time `json:"due_date"`
	NextDue   time.Time `json:"next_due"`
	Status    DueStatus `json:"due_status"`
}

// Bills lists active definitions with their paid state for the current
// month, ordered by due day.
func (e *RecurringEngine) Bills(ctx context.Context) ([]Bill, error) {
	now := e.now()
	month := period.KeyOf(now)
	defs, err := e.store.ListRecurringDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring definitions: %w", err)
	}
	payments, err := e.store.ListRecurringPayments(ctx, month.String())
	if err != nil {
		return nil, fmt.Errorf("list recurring payments: %w", err)
	}
	return BillsFor(defs, payments, now), nil
}

// BillsFor derives the bill view from already-fetched collections.
func BillsFor(defs []core.RecurringDefinition, payments []core.RecurringPayment, now time.Time) []Bill {
	month := period.KeyOf(now)
	paid := make(map[string]string, len(payments))
	for _, p := range payments {
		if p.MonthYear == month.String() {
			paid[p.RecurringID] = p.ID
		}
	}

	var out []Bill
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		day := period.ClampDay(month.Year, month.Month, def.DayOfMonth)
		b := Bill{
			RecurringDefinition: def,
			MonthYear:           month.String(),
			DueDate:             time.Date(month.Year, month.Month, day, 0, 0, 0, 0, now.Location()),
			NextDue:             NextDue(def, now),
			Status:              DueStatusOf(day, now.Day()),
		}
		b.PaymentID, b.Paid = paid[def.ID]
		out = append(out, b)
	}
	sortBills(out)
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
