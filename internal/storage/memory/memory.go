// Package memory is an in-process Ledger Store. Every operation holds one
// mutex, which makes the check-then-create guards atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dompet/internal/core"
	"dompet/internal/ports"
)

type Store struct {
	mu            sync.Mutex
	transactions  []core.Transaction
	accounts      []core.Account
	debts         []core.Debt
	budgets       []core.Budget
	goals         []core.FinancialGoal
	contributions []core.GoalContribution
	recurring     []core.RecurringDefinition
	payments      []core.RecurringPayment
	holdings      []core.Holding
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Close() error { return nil }

func newID() string { return uuid.NewString() }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if f.Matches(t) {
			out = append(out, cloneTx(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.txIndex(id); i >= 0 {
		return cloneTx(s.transactions[i]), nil
	}
	return core.Transaction{}, notFound("transaction", id)
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTx(t), nil
}

func (s *Store) insertTx(t core.Transaction) core.Transaction {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	t = cloneTx(t)
	s.transactions = append(s.transactions, t)
	return cloneTx(t)
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(t.ID)
	if i < 0 {
		return notFound("transaction", t.ID)
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	s.transactions[i] = cloneTx(t)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return notFound("transaction", id)
	}
	s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
	return nil
}

func (s *Store) txIndex(id string) int {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// Accounts

func (s *Store) ListAccounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Account(nil), s.accounts...)
	sort.Slice(out, func(i, j int) bool { return core.NameKey(out[i].Name) < core.NameKey(out[j].Name) })
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if core.SameName(existing.Name, a.Name) {
			return core.Account{}, &core.DuplicateAccountError{Name: a.Name}
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	s.accounts = append(s.accounts, a)
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, existing := range s.accounts {
		if existing.ID == a.ID {
			idx = i
			continue
		}
		if core.SameName(existing.Name, a.Name) {
			return &core.DuplicateAccountError{Name: a.Name}
		}
	}
	if idx < 0 {
		return notFound("account", a.ID)
	}
	s.accounts[idx] = a
	return nil
}

func (s *Store) SetAccountBalance(_ context.Context, id string, balance core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts[i].Balance = balance
			return nil
		}
	}
	return notFound("account", id)
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return nil
		}
	}
	return notFound("account", id)
}

// Debts

func (s *Store) ListDebts(context.Context) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Debt(nil), s.debts...), nil
}

func (s *Store) GetDebt(_ context.Context, id string) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.debts {
		if d.ID == id {
			return d, nil
		}
	}
	return core.Debt{}, notFound("debt", id)
}

func (s *Store) CreateDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	s.debts = append(s.debts, d)
	return d, nil
}

func (s *Store) ChargeCreditor(_ context.Context, opening core.Debt) (core.Debt, bool, error) {
	if err := opening.Validate(); err != nil {
		return core.Debt{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.debts {
		d := &s.debts[i]
		if d.IsActive && core.SameName(d.Creditor, opening.Creditor) {
			d.CurrentBalance = d.CurrentBalance.Add(opening.CurrentBalance)
			return *d, false, nil
		}
	}
	if opening.ID == "" {
		opening.ID = newID()
	}
	s.debts = append(s.debts, opening)
	return opening, true, nil
}

func (s *Store) UpdateDebt(_ context.Context, d core.Debt) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.debts {
		if s.debts[i].ID == d.ID {
			s.debts[i] = d
			return nil
		}
	}
	return notFound("debt", d.ID)
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.debts {
		if s.debts[i].ID == id {
			s.debts = append(s.debts[:i], s.debts[i+1:]...)
			return nil
		}
	}
	return notFound("debt", id)
}

// Budgets

func (s *Store) ListBudgets(_ context.Context, monthYear string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if monthYear == "" || b.MonthYear == monthYear {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.MonthYear == b.MonthYear && core.SameName(existing.Category, b.Category) {
			return core.Budget{}, &core.DuplicateBudgetError{Category: b.Category, MonthYear: b.MonthYear}
		}
	}
	if b.ID == "" {
		b.ID = newID()
	}
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, existing := range s.budgets {
		if existing.ID == b.ID {
			idx = i
			continue
		}
		if existing.MonthYear == b.MonthYear && core.SameName(existing.Category, b.Category) {
			return &core.DuplicateBudgetError{Category: b.Category, MonthYear: b.MonthYear}
		}
	}
	if idx < 0 {
		return notFound("budget", b.ID)
	}
	s.budgets[idx] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].ID == id {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return nil
		}
	}
	return notFound("budget", id)
}

// Goals

func (s *Store) ListGoals(context.Context) ([]core.FinancialGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.FinancialGoal(nil), s.goals...), nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.FinancialGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.goalIndex(id); i >= 0 {
		return s.goals[i], nil
	}
	return core.FinancialGoal{}, notFound("goal", id)
}

func (s *Store) CreateGoal(_ context.Context, g core.FinancialGoal) (core.FinancialGoal, error) {
	if err := g.Validate(); err != nil {
		return core.FinancialGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = newID()
	}
	g.IsAchieved = g.Achieved()
	s.goals = append(s.goals, g)
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.FinancialGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(g.ID)
	if i < 0 {
		return notFound("goal", g.ID)
	}
	g.IsAchieved = g.Achieved()
	s.goals[i] = g
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(id)
	if i < 0 {
		return notFound("goal", id)
	}
	s.goals = append(s.goals[:i], s.goals[i+1:]...)
	kept := s.contributions[:0]
	for _, c := range s.contributions {
		if c.GoalID != id {
			kept = append(kept, c)
		}
	}
	s.contributions = kept
	return nil
}

func (s *Store) AddContribution(_ context.Context, c core.GoalContribution) (core.FinancialGoal, error) {
	if err := c.Amount.Validate(); err != nil {
		return core.FinancialGoal{}, core.NewInvalidInput("amount", err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(c.GoalID)
	if i < 0 {
		return core.FinancialGoal{}, notFound("goal", c.GoalID)
	}
	if c.ID == "" {
		c.ID = newID()
	}
	s.contributions = append(s.contributions, c)
	g := &s.goals[i]
	g.CurrentAmount = g.CurrentAmount.Add(c.Amount)
	g.IsAchieved = g.Achieved()
	return *g, nil
}

func (s *Store) ListContributions(_ context.Context, goalID string) ([]core.GoalContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GoalContribution
	for _, c := range s.contributions {
		if c.GoalID == goalID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) goalIndex(id string) int {
	for i := range s.goals {
		if s.goals[i].ID == id {
			return i
		}
	}
	return -1
}

// Recurring

func (s *Store) ListRecurringDefinitions(context.Context) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringDefinition(nil), s.recurring...), nil
}

func (s *Store) GetRecurringDefinition(_ context.Context, id string) (core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recurring {
		if r.ID == id {
			return r, nil
		}
	}
	return core.RecurringDefinition{}, notFound("recurring definition", id)
}

func (s *Store) CreateRecurringDefinition(_ context.Context, r core.RecurringDefinition) (core.RecurringDefinition, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = newID()
	}
	s.recurring = append(s.recurring, r)
	return r, nil
}

func (s *Store) UpdateRecurringDefinition(_ context.Context, r core.RecurringDefinition) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recurring {
		if s.recurring[i].ID == r.ID {
			s.recurring[i] = r
			return nil
		}
	}
	return notFound("recurring definition", r.ID)
}

func (s *Store) DeleteRecurringDefinition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recurring {
		if s.recurring[i].ID == id {
			s.recurring = append(s.recurring[:i], s.recurring[i+1:]...)
			return nil
		}
	}
	return notFound("recurring definition", id)
}

func (s *Store) ListRecurringPayments(_ context.Context, monthYear string) ([]core.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringPayment
	for _, p := range s.payments {
		if monthYear == "" || p.MonthYear == monthYear {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) MarkRecurringPaid(_ context.Context, p core.RecurringPayment, tx core.Transaction) (core.RecurringPayment, core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.RecurringPayment{}, core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.RecurringID == p.RecurringID && existing.MonthYear == p.MonthYear {
			return core.RecurringPayment{}, core.Transaction{}, &core.AlreadyPaidError{RecurringID: p.RecurringID, MonthYear: p.MonthYear}
		}
	}
	tx = s.insertTx(tx)
	if p.ID == "" {
		p.ID = newID()
	}
	p.TransactionID = tx.ID
	s.payments = append(s.payments, p)
	return p, tx, nil
}

// Holdings

func (s *Store) ListHoldings(context.Context) ([]core.Holding, []*core.ParseError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Holding(nil), s.holdings...), nil, nil
}

func (s *Store) CreateHolding(_ context.Context, h core.Holding) (core.Holding, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.HoldingID() == "" {
		h = core.WithHoldingID(h, newID())
	}
	s.holdings = append(s.holdings, h)
	return h, nil
}

func (s *Store) DeleteHolding(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.holdings {
		if s.holdings[i].HoldingID() == id {
			s.holdings = append(s.holdings[:i], s.holdings[i+1:]...)
			return nil
		}
	}
	return notFound("holding", id)
}

func cloneTx(t core.Transaction) core.Transaction {
	t.Tags = append([]string(nil), t.Tags...)
	return t
}
