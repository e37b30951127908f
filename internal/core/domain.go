package core

import (
	"strings"
	"time"

	"dompet/internal/period"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	StatusCompleted TransactionStatus = "Completed"
	StatusPending   TransactionStatus = "Pending"
	StatusCancelled TransactionStatus = "Cancelled"
)

const (
	PaymentCash     PaymentMethod = "Cash"
	PaymentDebit    PaymentMethod = "Debit Card"
	PaymentCredit   PaymentMethod = "Credit Card"
	PaymentTransfer PaymentMethod = "Transfer"
	PaymentEWallet  PaymentMethod = "E-Wallet"
	PaymentPayLater PaymentMethod = "Pay Later"
)

const (
	Monthly Frequency = "monthly"
	Adhoc   Frequency = "adhoc"
)

const (
	DebtCreditCard  DebtType = "Credit Card"
	DebtInstallment DebtType = "Installment"
	DebtPersonal    DebtType = "Personal Loan"
	DebtMortgage    DebtType = "Mortgage"
	DebtVehicle     DebtType = "Vehicle Loan"
	DebtOther       DebtType = "Other"
)

type (
	TransactionType   string
	TransactionStatus string
	PaymentMethod     string
	Frequency         string
	DebtType          string

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger movement. Amount is always a positive
	// magnitude; Type carries the sign.
	Transaction struct {
		ID            string            `json:"id"`
		Date          time.Time         `json:"date"`
		Description   string            `json:"description"`
		Amount        Money             `json:"amount"`
		Type          TransactionType   `json:"type"`
		Category      string            `json:"category"`
		SubCategory   string            `json:"sub_category,omitempty"`
		Account       string            `json:"account"`
		PaymentMethod PaymentMethod     `json:"payment_method"`
		Status        TransactionStatus `json:"status"`
		Notes         string            `json:"notes,omitempty"`
		Tags          []string          `json:"tags,omitempty"`

		// RawDate holds the stored date text when it could not be parsed.
		// Date is zero in that case.
		RawDate string `json:"-"`
		// RawAmount holds the stored amount when it was not a whole number
		// of cents. Amount is zero in that case.
		RawAmount string `json:"-"`
	}

	// Account balance is a cached projection: OpeningBalance plus the signed
	// sum of the account's transactions.
	Account struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Type           string `json:"type"`
		OpeningBalance Money  `json:"opening_balance"`
		Balance        Money  `json:"balance"`
	}

	Debt struct {
		ID                    string    `json:"id"`
		DebtType              DebtType  `json:"debt_type"`
		Creditor              string    `json:"creditor"`
		PrincipalAmount       Money     `json:"principal_amount"`
		CurrentBalance        Money     `json:"current_balance"`
		InterestRate          float64   `json:"interest_rate"` // annual percent
		MonthlyPayment        Money     `json:"monthly_payment"`
		RemainingInstallments int       `json:"remaining_installments"`
		DueDay                int       `json:"due_day"` // 1-28
		StartDate             time.Time `json:"start_date"`
		Notes                 string    `json:"notes,omitempty"`
		IsActive              bool      `json:"is_active"`
	}

	Budget struct {
		ID        string `json:"id"`
		Category  string `json:"category"`
		Amount    Money  `json:"amount"`
		Period    string `json:"period"`
		MonthYear string `json:"month_year"`
	}

	FinancialGoal struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Category      string    `json:"category"`
		TargetAmount  Money     `json:"target_amount"`
		CurrentAmount Money     `json:"current_amount"`
		TargetDate    time.Time `json:"target_date"`
		IsAchieved    bool      `json:"is_achieved"`
		Notes         string    `json:"notes,omitempty"`
	}

	GoalContribution struct {
		ID     string    `json:"id"`
		GoalID string    `json:"goal_id"`
		Amount Money     `json:"amount"`
		Date   time.Time `json:"date"`
		Notes  string    `json:"notes,omitempty"`
	}

	RecurringDefinition struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Amount     Money           `json:"amount"`
		Type       TransactionType `json:"type"`
		Category   string          `json:"category"`
		Account    string          `json:"account"`
		Frequency  Frequency       `json:"frequency"`
		DayOfMonth int             `json:"day_of_month"`
		IsActive   bool            `json:"is_active"`
		Notes      string          `json:"notes,omitempty"`
	}

	// RecurringPayment is the materialization record proving a definition was
	// paid for MonthYear. At most one exists per (RecurringID, MonthYear).
	RecurringPayment struct {
		ID            string    `json:"id"`
		RecurringID   string    `json:"recurring_id"`
		TransactionID string    `json:"transaction_id"`
		MonthYear     string    `json:"month_year"`
		PaymentDate   time.Time `json:"payment_date"`
		Amount        Money     `json:"amount"`
	}
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Sign returns +1 for income and -1 for expense.
func (t TransactionType) Sign() int64 {
	if t == Expense {
		return -1
	}
	return 1
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// Counts reports whether a transaction with this status takes part in
// aggregation. Cancelled transactions are ignored.
func (s TransactionStatus) Counts() bool {
	return s != StatusCancelled
}

// IsCredit reports whether the method creates a liability at purchase time.
func (p PaymentMethod) IsCredit() bool {
	return p == PaymentCredit || p == PaymentPayLater
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return NewInvalidInput("date", "date cannot be zero")
	}
	if strings.TrimSpace(t.Description) == "" {
		return NewInvalidInput("description", ErrEmptyDescription.Error())
	}
	if len(t.Description) > 200 {
		return NewInvalidInput("description", "description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return NewInvalidInput("amount", err.Error())
	}
	if !t.Type.Valid() {
		return NewInvalidInput("type", "type must be income or expense")
	}
	if strings.TrimSpace(t.Category) == "" {
		return NewInvalidInput("category", ErrEmptyCategory.Error())
	}
	if strings.TrimSpace(t.Account) == "" {
		return NewInvalidInput("account", ErrEmptyAccount.Error())
	}
	if t.Status != "" && !t.Status.Valid() {
		return NewInvalidInput("status", "unknown status "+string(t.Status))
	}
	return nil
}

// Check reports why a stored record cannot take part in aggregation.
// It returns nil for well-formed records.
func (t Transaction) Check() error {
	if t.Date.IsZero() {
		return &ParseError{RecordID: t.ID, Field: "date", Value: t.RawDate}
	}
	if t.RawAmount != "" {
		return &ParseError{RecordID: t.ID, Field: "amount", Value: t.RawAmount}
	}
	if t.Amount.Cents < 0 {
		return &ParseError{RecordID: t.ID, Field: "amount", Value: FormatCents(t.Amount.Cents)}
	}
	if !t.Type.Valid() {
		return &ParseError{RecordID: t.ID, Field: "type", Value: string(t.Type)}
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return NewInvalidInput("name", "account name cannot be empty")
	}
	if strings.TrimSpace(a.Type) == "" {
		return NewInvalidInput("type", "account type cannot be empty")
	}
	return nil
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Creditor) == "" {
		return NewInvalidInput("creditor", "creditor cannot be empty")
	}
	if err := d.PrincipalAmount.Validate(); err != nil {
		return NewInvalidInput("principal_amount", err.Error())
	}
	if d.CurrentBalance.Cents < 0 {
		return NewInvalidInput("current_balance", "current balance cannot be negative")
	}
	if d.InterestRate < 0 {
		return NewInvalidInput("interest_rate", "interest rate cannot be negative")
	}
	if d.RemainingInstallments < 0 {
		return NewInvalidInput("remaining_installments", "remaining installments cannot be negative")
	}
	if d.DueDay < 1 || d.DueDay > 28 {
		return NewInvalidInput("due_date", "due day must be between 1 and 28")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return NewInvalidInput("category", ErrEmptyCategory.Error())
	}
	if err := b.Amount.Validate(); err != nil {
		return NewInvalidInput("amount", err.Error())
	}
	if !period.Valid(b.MonthYear) {
		return NewInvalidInput("month_year", "month_year must be YYYY-MM")
	}
	return nil
}

func (g FinancialGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return NewInvalidInput("name", "goal name cannot be empty")
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return NewInvalidInput("target_amount", err.Error())
	}
	if g.CurrentAmount.Cents < 0 {
		return NewInvalidInput("current_amount", "current amount cannot be negative")
	}
	if g.TargetDate.IsZero() {
		return NewInvalidInput("target_date", "target date cannot be zero")
	}
	return nil
}

// Achieved reports whether the goal has reached its target. Over-contribution
// is allowed.
func (g FinancialGoal) Achieved() bool {
	return g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

func (r RecurringDefinition) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewInvalidInput("name", "name cannot be empty")
	}
	if err := r.Amount.Validate(); err != nil {
		return NewInvalidInput("amount", err.Error())
	}
	if !r.Type.Valid() {
		return NewInvalidInput("type", "type must be income or expense")
	}
	if strings.TrimSpace(r.Category) == "" {
		return NewInvalidInput("category", ErrEmptyCategory.Error())
	}
	if strings.TrimSpace(r.Account) == "" {
		return NewInvalidInput("account", ErrEmptyAccount.Error())
	}
	switch r.Frequency {
	case Monthly, Adhoc:
	default:
		return NewInvalidInput("frequency", "invalid frequency "+string(r.Frequency))
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return NewInvalidInput("day_of_month", ErrInvalidDay.Error())
	}
	return nil
}
