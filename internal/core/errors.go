package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyAccount     = errors.New("empty account")

	ErrNotFound = errors.New("not found")

	ErrParse            = errors.New("malformed record")
	ErrDuplicateBudget  = errors.New("duplicate budget")
	ErrDuplicateAccount = errors.New("duplicate account")
	ErrAlreadyPaid      = errors.New("already paid")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ParseError describes a stored record that carries a malformed field.
// Aggregations exclude such records and report them.
type ParseError struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Value    string `json:"value"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %s: malformed %s %q", e.RecordID, e.Field, e.Value)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

type DuplicateBudgetError struct {
	Category  string
	MonthYear string
}

func (e *DuplicateBudgetError) Error() string {
	return fmt.Sprintf("budget for %s already exists for %s", e.Category, e.MonthYear)
}

func (e *DuplicateBudgetError) Is(target error) bool { return target == ErrDuplicateBudget }

type DuplicateAccountError struct {
	Name string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("account %q already exists", e.Name)
}

func (e *DuplicateAccountError) Is(target error) bool { return target == ErrDuplicateAccount }

type AlreadyPaidError struct {
	RecurringID string
	MonthYear   string
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("recurring %s already paid for %s", e.RecurringID, e.MonthYear)
}

func (e *AlreadyPaidError) Is(target error) bool { return target == ErrAlreadyPaid }

type InvalidInputError struct {
	Field  string
	Reason string
}

func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// StoreUnavailableError wraps a collaborator I/O failure. Callers decide
// whether to retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Retryable() bool { return true }

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su) && su.Retryable()
}
