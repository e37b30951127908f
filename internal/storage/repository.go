package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"dompet/internal/core"
	"dompet/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps BEGIN/COMMIT units serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// storeErr classifies a driver error. Missing rows become ErrNotFound; any
// other failure is reported as a retryable store outage.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return &core.StoreUnavailableError{Op: op, Err: err}
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// Transactions

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	// Rows whose date is not a valid YYYY-MM-DD pass the range so callers
	// see them and report them, matching the in-memory store.
	var span []string
	if !f.From.IsZero() {
		span = append(span, "date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		span = append(span, "date < ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if len(span) > 0 {
		where = append(where, "(("+strings.Join(span, " AND ")+") OR date(date) IS NOT date)")
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		// Category and account match case-insensitively in Go.
		if !f.Matches(t) {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction "+id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if err := r.queries.insertTransaction(ctx, t); err != nil {
		return core.Transaction{}, storeErr("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"category", t.Category,
		"date", t.Date.Format(dateLayout))
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	tags, err := jsonTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET date = ?, description = ?, amount_cents = ?,
		type = ?, category = ?, sub_category = ?, account = ?, payment_method = ?, status = ?, notes = ?, tags = ?
		WHERE id = ?`,
		t.Date.Format(dateLayout), t.Description, t.Amount.Cents, string(t.Type), t.Category, t.SubCategory,
		t.Account, string(t.PaymentMethod), string(t.Status), t.Notes, tags, t.ID)
	if err != nil {
		return storeErr("update transaction", err)
	}
	return requireAffected("update transaction "+t.ID, res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete transaction", err)
	}
	return requireAffected("delete transaction "+id, res)
}

// Accounts

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, opening_balance_cents, balance_cents
		FROM accounts ORDER BY name_key`)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a                core.Account
			opening, balance int64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &opening, &balance); err != nil {
			return nil, storeErr("scan account", err)
		}
		a.OpeningBalance = core.Money{Cents: opening}
		a.Balance = core.Money{Cents: balance}
		out = append(out, a)
	}
	return out, storeErr("list accounts", rows.Err())
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (id, name, name_key, type, opening_balance_cents, balance_cents)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, strings.TrimSpace(a.Name), core.NameKey(a.Name), a.Type, a.OpeningBalance.Cents, a.Balance.Cents)
	if isUniqueViolation(err) {
		slog.WarnContext(ctx, "Duplicate account rejected", "name", a.Name)
		return core.Account{}, &core.DuplicateAccountError{Name: a.Name}
	}
	if err != nil {
		return core.Account{}, storeErr("create account", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "name", a.Name)
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET name = ?, name_key = ?, type = ?,
		opening_balance_cents = ?, balance_cents = ? WHERE id = ?`,
		strings.TrimSpace(a.Name), core.NameKey(a.Name), a.Type, a.OpeningBalance.Cents, a.Balance.Cents, a.ID)
	if isUniqueViolation(err) {
		return &core.DuplicateAccountError{Name: a.Name}
	}
	if err != nil {
		return storeErr("update account", err)
	}
	return requireAffected("update account "+a.ID, res)
}

func (r *SQLiteRepository) SetAccountBalance(ctx context.Context, id string, balance core.Money) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET balance_cents = ? WHERE id = ?`, balance.Cents, id)
	if err != nil {
		return storeErr("set account balance", err)
	}
	return requireAffected("set account balance "+id, res)
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete account", err)
	}
	return requireAffected("delete account "+id, res)
}

// Debts

func (r *SQLiteRepository) ListDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts ORDER BY start_date`)
	if err != nil {
		return nil, storeErr("list debts", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, storeErr("scan debt", err)
		}
		out = append(out, d)
	}
	return out, storeErr("list debts", rows.Err())
}

func (r *SQLiteRepository) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	d, err := scanDebt(r.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id))
	if err != nil {
		return core.Debt{}, storeErr("get debt "+id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := r.queries.insertDebt(ctx, d); err != nil {
		return core.Debt{}, storeErr("create debt", err)
	}
	slog.InfoContext(ctx, "Debt saved to SQLite", "id", d.ID, "creditor", d.Creditor, "balance_cents", d.CurrentBalance.Cents)
	return d, nil
}

func (r *SQLiteRepository) UpdateDebt(ctx context.Context, d core.Debt) error {
	if err := d.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE debts SET debt_type = ?, creditor = ?, principal_cents = ?,
		current_balance_cents = ?, interest_rate = ?, monthly_payment_cents = ?, remaining_installments = ?,
		due_day = ?, start_date = ?, notes = ?, is_active = ? WHERE id = ?`,
		string(d.DebtType), d.Creditor, d.PrincipalAmount.Cents, d.CurrentBalance.Cents, d.InterestRate,
		d.MonthlyPayment.Cents, d.RemainingInstallments, d.DueDay, d.StartDate.Format(dateLayout), d.Notes,
		d.IsActive, d.ID)
	if err != nil {
		return storeErr("update debt", err)
	}
	return requireAffected("update debt "+d.ID, res)
}

func (r *SQLiteRepository) ChargeCreditor(ctx context.Context, opening core.Debt) (core.Debt, bool, error) {
	if err := opening.Validate(); err != nil {
		return core.Debt{}, false, err
	}
	var (
		debt   core.Debt
		opened bool
	)
	err := r.inTx(ctx, "charge creditor", func(q *Queries) error {
		active, err := q.activeDebts(ctx)
		if err != nil {
			return storeErr("list active debts", err)
		}
		for _, d := range active {
			if !core.SameName(d.Creditor, opening.Creditor) {
				continue
			}
			d.CurrentBalance = d.CurrentBalance.Add(opening.CurrentBalance)
			if _, err := q.db.ExecContext(ctx, `UPDATE debts SET current_balance_cents = ? WHERE id = ?`,
				d.CurrentBalance.Cents, d.ID); err != nil {
				return storeErr("charge debt", err)
			}
			debt = d
			return nil
		}
		if opening.ID == "" {
			opening.ID = uuid.NewString()
		}
		if err := q.insertDebt(ctx, opening); err != nil {
			return storeErr("open debt", err)
		}
		debt, opened = opening, true
		return nil
	})
	if err != nil {
		return core.Debt{}, false, err
	}
	slog.InfoContext(ctx, "Creditor charged", "id", debt.ID, "creditor", debt.Creditor,
		"opened", opened, "balance_cents", debt.CurrentBalance.Cents)
	return debt, opened, nil
}

func (r *SQLiteRepository) DeleteDebt(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete debt", err)
	}
	return requireAffected("delete debt "+id, res)
}

// Budgets

func (r *SQLiteRepository) ListBudgets(ctx context.Context, monthYear string) ([]core.Budget, error) {
	query := `SELECT id, category, amount_cents, period, month_year FROM budgets`
	var args []any
	if monthYear != "" {
		query += ` WHERE month_year = ?`
		args = append(args, monthYear)
	}
	query += ` ORDER BY month_year, category_key`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list budgets", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b      core.Budget
			amount int64
		)
		if err := rows.Scan(&b.ID, &b.Category, &amount, &b.Period, &b.MonthYear); err != nil {
			return nil, storeErr("scan budget", err)
		}
		b.Amount = core.Money{Cents: amount}
		out = append(out, b)
	}
	return out, storeErr("list budgets", rows.Err())
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (id, category, category_key, amount_cents, period, month_year)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Category, core.NameKey(b.Category), b.Amount.Cents, b.Period, b.MonthYear)
	if isUniqueViolation(err) {
		slog.WarnContext(ctx, "Duplicate budget rejected", "category", b.Category, "month_year", b.MonthYear)
		return core.Budget{}, &core.DuplicateBudgetError{Category: b.Category, MonthYear: b.MonthYear}
	}
	if err != nil {
		return core.Budget{}, storeErr("create budget", err)
	}
	slog.InfoContext(ctx, "Budget saved to SQLite", "id", b.ID, "category", b.Category, "month_year", b.MonthYear)
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET category = ?, category_key = ?, amount_cents = ?,
		period = ?, month_year = ? WHERE id = ?`,
		b.Category, core.NameKey(b.Category), b.Amount.Cents, b.Period, b.MonthYear, b.ID)
	if isUniqueViolation(err) {
		return &core.DuplicateBudgetError{Category: b.Category, MonthYear: b.MonthYear}
	}
	if err != nil {
		return storeErr("update budget", err)
	}
	return requireAffected("update budget "+b.ID, res)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete budget", err)
	}
	return requireAffected("delete budget "+id, res)
}

// Goals

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.FinancialGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY target_date`)
	if err != nil {
		return nil, storeErr("list goals", err)
	}
	defer rows.Close()

	var out []core.FinancialGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, storeErr("scan goal", err)
		}
		out = append(out, g)
	}
	return out, storeErr("list goals", rows.Err())
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (core.FinancialGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if err != nil {
		return core.FinancialGoal{}, storeErr("get goal "+id, err)
	}
	return g, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.FinancialGoal) (core.FinancialGoal, error) {
	if err := g.Validate(); err != nil {
		return core.FinancialGoal{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.IsAchieved = g.Achieved()
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Category, g.TargetAmount.Cents, g.CurrentAmount.Cents, g.TargetDate.Format(dateLayout),
		g.IsAchieved, g.Notes)
	if err != nil {
		return core.FinancialGoal{}, storeErr("create goal", err)
	}
	slog.InfoContext(ctx, "Goal saved to SQLite", "id", g.ID, "name", g.Name)
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.FinancialGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g.IsAchieved = g.Achieved()
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET name = ?, category = ?, target_cents = ?, current_cents = ?,
		target_date = ?, is_achieved = ?, notes = ? WHERE id = ?`,
		g.Name, g.Category, g.TargetAmount.Cents, g.CurrentAmount.Cents, g.TargetDate.Format(dateLayout),
		g.IsAchieved, g.Notes, g.ID)
	if err != nil {
		return storeErr("update goal", err)
	}
	return requireAffected("update goal "+g.ID, res)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	return r.inTx(ctx, "delete goal", func(q *Queries) error {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM goal_contributions WHERE goal_id = ?`, id); err != nil {
			return storeErr("delete goal contributions", err)
		}
		res, err := q.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
		if err != nil {
			return storeErr("delete goal", err)
		}
		return requireAffected("delete goal "+id, res)
	})
}

func (r *SQLiteRepository) AddContribution(ctx context.Context, c core.GoalContribution) (core.FinancialGoal, error) {
	if err := c.Amount.Validate(); err != nil {
		return core.FinancialGoal{}, core.NewInvalidInput("amount", err.Error())
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var g core.FinancialGoal
	err := r.inTx(ctx, "add contribution", func(q *Queries) error {
		res, err := q.db.ExecContext(ctx, `UPDATE goals SET current_cents = current_cents + ?,
			is_achieved = (current_cents + ? >= target_cents) WHERE id = ?`, c.Amount.Cents, c.Amount.Cents, c.GoalID)
		if err != nil {
			return storeErr("update goal amount", err)
		}
		if err := requireAffected("goal "+c.GoalID, res); err != nil {
			return err
		}
		if _, err := q.db.ExecContext(ctx, `INSERT INTO goal_contributions (id, goal_id, amount_cents, date, notes)
			VALUES (?, ?, ?, ?, ?)`, c.ID, c.GoalID, c.Amount.Cents, c.Date.Format(dateLayout), c.Notes); err != nil {
			return storeErr("insert contribution", err)
		}
		g, err = scanGoal(q.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, c.GoalID))
		return storeErr("reload goal", err)
	})
	if err != nil {
		return core.FinancialGoal{}, err
	}
	slog.InfoContext(ctx, "Goal contribution saved", "goal_id", c.GoalID, "amount_cents", c.Amount.Cents,
		"achieved", g.IsAchieved)
	return g, nil
}

func (r *SQLiteRepository) ListContributions(ctx context.Context, goalID string) ([]core.GoalContribution, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, goal_id, amount_cents, date, notes FROM goal_contributions
		WHERE goal_id = ? ORDER BY date`, goalID)
	if err != nil {
		return nil, storeErr("list contributions", err)
	}
	defer rows.Close()

	var out []core.GoalContribution
	for rows.Next() {
		var (
			c      core.GoalContribution
			amount int64
			date   string
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &amount, &date, &c.Notes); err != nil {
			return nil, storeErr("scan contribution", err)
		}
		c.Amount = core.Money{Cents: amount}
		c.Date = parseDate(date)
		out = append(out, c)
	}
	return out, storeErr("list contributions", rows.Err())
}

// Recurring

func (r *SQLiteRepository) ListRecurringDefinitions(ctx context.Context) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_definitions ORDER BY day_of_month, name`)
	if err != nil {
		return nil, storeErr("list recurring definitions", err)
	}
	defer rows.Close()

	var out []core.RecurringDefinition
	for rows.Next() {
		d, err := scanRecurring(rows)
		if err != nil {
			return nil, storeErr("scan recurring definition", err)
		}
		out = append(out, d)
	}
	return out, storeErr("list recurring definitions", rows.Err())
}

func (r *SQLiteRepository) GetRecurringDefinition(ctx context.Context, id string) (core.RecurringDefinition, error) {
	d, err := scanRecurring(r.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_definitions WHERE id = ?`, id))
	if err != nil {
		return core.RecurringDefinition{}, storeErr("get recurring definition "+id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateRecurringDefinition(ctx context.Context, d core.RecurringDefinition) (core.RecurringDefinition, error) {
	if err := d.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_definitions (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Amount.Cents, string(d.Type), d.Category, d.Account, string(d.Frequency),
		d.DayOfMonth, d.IsActive, d.Notes)
	if err != nil {
		return core.RecurringDefinition{}, storeErr("create recurring definition", err)
	}
	slog.InfoContext(ctx, "Recurring definition saved to SQLite", "id", d.ID, "name", d.Name, "day", d.DayOfMonth)
	return d, nil
}

func (r *SQLiteRepository) UpdateRecurringDefinition(ctx context.Context, d core.RecurringDefinition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_definitions SET name = ?, amount_cents = ?, type = ?,
		category = ?, account = ?, frequency = ?, day_of_month = ?, is_active = ?, notes = ? WHERE id = ?`,
		d.Name, d.Amount.Cents, string(d.Type), d.Category, d.Account, string(d.Frequency), d.DayOfMonth,
		d.IsActive, d.Notes, d.ID)
	if err != nil {
		return storeErr("update recurring definition", err)
	}
	return requireAffected("update recurring definition "+d.ID, res)
}

func (r *SQLiteRepository) DeleteRecurringDefinition(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_definitions WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete recurring definition", err)
	}
	return requireAffected("delete recurring definition "+id, res)
}

func (r *SQLiteRepository) ListRecurringPayments(ctx context.Context, monthYear string) ([]core.RecurringPayment, error) {
	query := `SELECT id, recurring_id, transaction_id, month_year, payment_date, amount_cents FROM recurring_payments`
	var args []any
	if monthYear != "" {
		query += ` WHERE month_year = ?`
		args = append(args, monthYear)
	}
	query += ` ORDER BY month_year, payment_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list recurring payments", err)
	}
	defer rows.Close()

	var out []core.RecurringPayment
	for rows.Next() {
		var (
			p      core.RecurringPayment
			date   string
			amount int64
		)
		if err := rows.Scan(&p.ID, &p.RecurringID, &p.TransactionID, &p.MonthYear, &date, &amount); err != nil {
			return nil, storeErr("scan recurring payment", err)
		}
		p.PaymentDate = parseDate(date)
		p.Amount = core.Money{Cents: amount}
		out = append(out, p)
	}
	return out, storeErr("list recurring payments", rows.Err())
}

// MarkRecurringPaid inserts the payment before the transaction so the
// (recurring_id, month_year) unique index rejects a second caller before any
// transaction row is written. Both rows share one database transaction.
func (r *SQLiteRepository) MarkRecurringPaid(ctx context.Context, p core.RecurringPayment, t core.Transaction) (core.RecurringPayment, core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.RecurringPayment{}, core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.TransactionID = t.ID

	err := r.inTx(ctx, "mark recurring paid", func(q *Queries) error {
		_, err := q.db.ExecContext(ctx, `INSERT INTO recurring_payments
			(id, recurring_id, transaction_id, month_year, payment_date, amount_cents) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.RecurringID, p.TransactionID, p.MonthYear, p.PaymentDate.Format(dateLayout), p.Amount.Cents)
		if isUniqueViolation(err) {
			return &core.AlreadyPaidError{RecurringID: p.RecurringID, MonthYear: p.MonthYear}
		}
		if err != nil {
			return storeErr("insert recurring payment", err)
		}
		if err := q.insertTransaction(ctx, t); err != nil {
			return storeErr("insert recurring transaction", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrAlreadyPaid) {
			slog.WarnContext(ctx, "Recurring payment already recorded",
				"recurring_id", p.RecurringID, "month_year", p.MonthYear)
		}
		return core.RecurringPayment{}, core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Recurring payment saved to SQLite",
		"recurring_id", p.RecurringID,
		"month_year", p.MonthYear,
		"transaction_id", t.ID,
		"amount_cents", p.Amount.Cents)
	return p, t, nil
}

// Holdings

func (r *SQLiteRepository) ListHoldings(ctx context.Context) ([]core.Holding, []*core.ParseError, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, payload FROM holdings ORDER BY kind, id`)
	if err != nil {
		return nil, nil, storeErr("list holdings", err)
	}
	defer rows.Close()

	var (
		out []core.Holding
		bad []*core.ParseError
	)
	for rows.Next() {
		var id, kind, payload string
		if err := rows.Scan(&id, &kind, &payload); err != nil {
			return nil, nil, storeErr("scan holding", err)
		}
		h, err := core.DecodeHolding(core.HoldingKind(kind), []byte(payload))
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable holding", "id", id, "kind", kind, "error", err)
			bad = append(bad, &core.ParseError{RecordID: id, Field: "payload", Value: kind})
			continue
		}
		out = append(out, core.WithHoldingID(h, id))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr("list holdings", err)
	}
	return out, bad, nil
}

func (r *SQLiteRepository) CreateHolding(ctx context.Context, h core.Holding) (core.Holding, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if h.HoldingID() == "" {
		h = core.WithHoldingID(h, uuid.NewString())
	}
	payload, err := core.EncodeHolding(h)
	if err != nil {
		return nil, fmt.Errorf("encode holding: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO holdings (id, kind, payload) VALUES (?, ?, ?)`,
		h.HoldingID(), string(h.Kind()), string(payload)); err != nil {
		return nil, storeErr("create holding", err)
	}
	slog.InfoContext(ctx, "Holding saved to SQLite", "id", h.HoldingID(), "kind", h.Kind())
	return h, nil
}

func (r *SQLiteRepository) DeleteHolding(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete holding", err)
	}
	return requireAffected("delete holding "+id, res)
}
