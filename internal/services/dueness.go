// Package services orchestrates ledger writes that carry engine semantics:
// recurring materialization, transaction creation rules, goal contributions
// and debt payments.
//
// Dueness of recurring definitions follows a strategy per frequency.
package services

import (
	"fmt"
	"sort"
	"time"

	"dompet/internal/core"
	"dompet/internal/period"
)

// DueStatus classifies a day-of-month against today's day-of-month.
type DueStatus string

const (
	Overdue  DueStatus = "overdue"
	DueSoon  DueStatus = "soon"
	Upcoming DueStatus = "upcoming"
)

// SoonWindow is how many days ahead a due day counts as soon.
const SoonWindow = 3

// DueStatusOf reports overdue when today is past dayOfMonth, soon when
// dayOfMonth is at most SoonWindow days ahead, and upcoming otherwise.
func DueStatusOf(dayOfMonth, today int) DueStatus {
	switch {
	case today > dayOfMonth:
		return Overdue
	case dayOfMonth-today <= SoonWindow:
		return DueSoon
	default:
		return Upcoming
	}
}

// DuenessChecker decides whether a recurring definition should be
// materialized for monthYear as of now.
type DuenessChecker interface {
	IsDue(def core.RecurringDefinition, monthYear period.Key, now time.Time) bool
}

// MonthlyChecker is due once the definition's day (clamped to the month's
// length) has been reached, or for any month already past.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(def core.RecurringDefinition, monthYear period.Key, now time.Time) bool {
	current := period.KeyOf(now)
	if current.Before(monthYear) {
		return false
	}
	if monthYear.Before(current) {
		return true
	}
	return now.Day() >= period.ClampDay(monthYear.Year, monthYear.Month, def.DayOfMonth)
}

// AdhocChecker is never due; ad-hoc definitions are paid by hand.
type AdhocChecker struct{}

func (AdhocChecker) IsDue(core.RecurringDefinition, period.Key, time.Time) bool { return false }

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Monthly: MonthlyChecker{},
	core.Adhoc:   AdhocChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// NextDue is the next date on or after from that falls on the definition's
// day of month, clamped to the month's length.
func NextDue(def core.RecurringDefinition, from time.Time) time.Time {
	return period.NextOccurrence(def.DayOfMonth, from)
}

func sortBills(bills []Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if bills[i].DueDate.Equal(bills[j].DueDate) {
			return bills[i].Name < bills[j].Name
		}
		return bills[i].DueDate.Before(bills[j].DueDate)
	})
}
