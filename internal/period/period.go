// Package period maps dates to (year, month) buckets and enumerates month
// ranges. All functions are pure; nothing here keeps state between calls.
package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedKey is returned for strings that are not YYYY-MM.
var ErrMalformedKey = errors.New("month key must be YYYY-MM")

const keyLayout = "2006-01"

// Key is a (year, month) bucket.
type Key struct {
	Year  int
	Month time.Month
}

// KeyOf returns the bucket containing t, in t's own location.
func KeyOf(t time.Time) Key {
	return Key{Year: t.Year(), Month: t.Month()}
}

// MonthKey formats the bucket containing t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return KeyOf(t).String()
}

func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Add moves the key by n months, normalizing year rollover in both
// directions.
func (k Key) Add(n int) Key {
	idx := k.Year*12 + int(k.Month) - 1 + n
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return Key{Year: year, Month: time.Month(month + 1)}
}

func (k Key) Before(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// Start is the first instant of the month in UTC.
func (k Key) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls in the bucket.
func (k Key) Contains(t time.Time) bool {
	return KeyOf(t) == k
}

// ParseKey parses "YYYY-MM".
func ParseKey(s string) (Key, error) {
	if len(s) != len(keyLayout) {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	t, err := time.Parse(keyLayout, s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return KeyOf(t), nil
}

// Valid reports whether s is a well-formed month key.
func Valid(s string) bool {
	_, err := ParseKey(s)
	return err == nil
}

// MonthsBack returns n month keys ending at from's month, oldest first.
// n <= 0 yields an empty slice.
func MonthsBack(n int, from time.Time) []string {
	if n <= 0 {
		return []string{}
	}
	end := KeyOf(from)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = end.Add(i - n + 1).String()
	}
	return out
}

// Range returns every key from first to last inclusive, oldest first.
// It returns an empty slice when last precedes first.
func Range(first, last Key) []Key {
	out := []Key{}
	for k := first; !last.Before(k); k = k.Add(1) {
		out = append(out, k)
	}
	return out
}

// AddMonths moves t by k months keeping the day of month. When the target
// month is shorter, the day is clamped to its last day (Jan 31 + 1 month is
// Feb 28 or 29), unlike time.AddDate which would roll into March.
func AddMonths(t time.Time, k int) time.Time {
	target := KeyOf(t).Add(k)
	day := ClampDay(target.Year, target.Month, t.Day())
	return time.Date(target.Year, target.Month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ClampDay limits day to the length of the given month.
func ClampDay(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// DaysIn returns the number of days in month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextOccurrence returns the next date on or after from that falls on
// dayOfMonth, clamped to month end.
func NextOccurrence(dayOfMonth int, from time.Time) time.Time {
	k := KeyOf(from)
	d := ClampDay(k.Year, k.Month, dayOfMonth)
	candidate := time.Date(k.Year, k.Month, d, 0, 0, 0, 0, from.Location())
	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	if candidate.Before(today) {
		n := k.Add(1)
		candidate = time.Date(n.Year, n.Month, ClampDay(n.Year, n.Month, dayOfMonth), 0, 0, 0, 0, from.Location())
	}
	return candidate
}
