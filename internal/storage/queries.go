package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dompet/internal/core"
)

const dateLayout = "2006-01-02"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `id, date, description, amount_cents, type, category, sub_category, account, payment_method, status, notes, tags`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		date     string
		amount   any
		typ      string
		method   string
		status   string
		tagsJSON string
	)
	if err := row.Scan(&t.ID, &date, &t.Description, &amount, &typ, &t.Category, &t.SubCategory,
		&t.Account, &method, &status, &t.Notes, &tagsJSON); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.PaymentMethod = core.PaymentMethod(method)
	t.Status = core.TransactionStatus(status)
	if cents, ok := parseCents(amount); ok {
		t.Amount = core.Money{Cents: cents}
	} else {
		// Left zero; Check reports it as a parse error.
		t.RawAmount = fmt.Sprint(amount)
	}
	if d, err := time.Parse(dateLayout, date); err == nil {
		t.Date = d
	} else {
		t.RawDate = date
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			slog.Warn("Ignoring malformed transaction tags", "id", t.ID, "tags", tagsJSON, "error", err)
			t.Tags = nil
		}
	}
	return t, nil
}

// parseCents accepts the integer forms SQLite may hand back for an amount
// column. Text is accepted only when it holds a whole number.
func parseCents(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<62 {
			return int64(v), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (q *Queries) insertTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := json.Marshal(nonNil(t.Tags))
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Date.Format(dateLayout), t.Description, t.Amount.Cents, string(t.Type), t.Category,
		t.SubCategory, t.Account, string(t.PaymentMethod), string(t.Status), t.Notes, string(tags))
	return err
}

const debtColumns = `id, debt_type, creditor, principal_cents, current_balance_cents, interest_rate, monthly_payment_cents, remaining_installments, due_day, start_date, notes, is_active`

func scanDebt(row scanner) (core.Debt, error) {
	var (
		d                         core.Debt
		typ, start                string
		principal, balance, month int64
	)
	if err := row.Scan(&d.ID, &typ, &d.Creditor, &principal, &balance, &d.InterestRate, &month,
		&d.RemainingInstallments, &d.DueDay, &start, &d.Notes, &d.IsActive); err != nil {
		return core.Debt{}, err
	}
	d.DebtType = core.DebtType(typ)
	d.PrincipalAmount = core.Money{Cents: principal}
	d.CurrentBalance = core.Money{Cents: balance}
	d.MonthlyPayment = core.Money{Cents: month}
	d.StartDate = parseDate(start)
	return d, nil
}

func (q *Queries) insertDebt(ctx context.Context, d core.Debt) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO debts (`+debtColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.DebtType), d.Creditor, d.PrincipalAmount.Cents, d.CurrentBalance.Cents, d.InterestRate,
		d.MonthlyPayment.Cents, d.RemainingInstallments, d.DueDay, d.StartDate.Format(dateLayout), d.Notes, d.IsActive)
	return err
}

func (q *Queries) activeDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE is_active = 1 ORDER BY start_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const goalColumns = `id, name, category, target_cents, current_cents, target_date, is_achieved, notes`

func scanGoal(row scanner) (core.FinancialGoal, error) {
	var (
		g               core.FinancialGoal
		target, current int64
		date            string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Category, &target, &current, &date, &g.IsAchieved, &g.Notes); err != nil {
		return core.FinancialGoal{}, err
	}
	g.TargetAmount = core.Money{Cents: target}
	g.CurrentAmount = core.Money{Cents: current}
	g.TargetDate = parseDate(date)
	return g, nil
}

const recurringColumns = `id, name, amount_cents, type, category, account, frequency, day_of_month, is_active, notes`

func scanRecurring(row scanner) (core.RecurringDefinition, error) {
	var (
		r         core.RecurringDefinition
		amount    int64
		typ, freq string
	)
	if err := row.Scan(&r.ID, &r.Name, &amount, &typ, &r.Category, &r.Account, &freq,
		&r.DayOfMonth, &r.IsActive, &r.Notes); err != nil {
		return core.RecurringDefinition{}, err
	}
	r.Amount = core.Money{Cents: amount}
	r.Type = core.TransactionType(typ)
	r.Frequency = core.Frequency(freq)
	return r, nil
}

func parseDate(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return d
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func jsonTags(tags []string) (string, error) {
	b, err := json.Marshal(nonNil(tags))
	return string(b), err
}
