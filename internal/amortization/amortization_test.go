package amortization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/core"
)

func major(units int64) core.Money { return core.Money{Cents: units * 100} }

func TestCalculateTwelvePercentOneYear(t *testing.T) {
	res, err := Calculate(major(12_000_000), 12, 12)
	require.NoError(t, err)

	// 12,000,000 at 1% a month for 12 months pays 1,066,185.46 a month.
	assert.Equal(t, int64(106_618_546), res.MonthlyPayment.Cents)
	assert.InDelta(t, res.MonthlyPayment.Cents*12, res.TotalPayment.Cents, 12)
	assert.Equal(t, res.TotalPayment.Cents-major(12_000_000).Cents, res.TotalInterest.Cents)
}

func TestCalculateZeroRate(t *testing.T) {
	res, err := Calculate(major(1200), 0, 12)
	require.NoError(t, err)
	assert.Equal(t, major(100), res.MonthlyPayment)
	assert.Equal(t, major(1200), res.TotalPayment)
	assert.Equal(t, core.Money{}, res.TotalInterest)
}

func TestCalculateRoundsHalfUpOnce(t *testing.T) {
	// 100.00 over 3 months: 33.333... per month, 100.00 in total.
	res, err := Calculate(major(100), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3333), res.MonthlyPayment.Cents)
	assert.Equal(t, int64(10000), res.TotalPayment.Cents)
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		p      core.Money
		rate   float64
		months int
		field  string
	}{
		{"zero principal", core.Money{}, 10, 12, "principal"},
		{"negative principal", core.Money{Cents: -1}, 10, 12, "principal"},
		{"zero term", major(100), 10, 0, "months"},
		{"negative rate", major(100), -1, 12, "annual_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.p, tt.rate, tt.months)
			var inv *core.InvalidInputError
			require.True(t, errors.As(err, &inv), "got %v", err)
			assert.Equal(t, tt.field, inv.Field)
		})
	}
}

func TestScheduleEndsAtZero(t *testing.T) {
	rows, err := Schedule(major(12_000_000), 12, 12)
	require.NoError(t, err)
	require.Len(t, rows, 12)

	assert.Equal(t, major(120_000), rows[0].Interest)
	assert.Equal(t, core.Money{}, rows[11].Balance)

	var principal int64
	for _, r := range rows {
		principal += r.Principal.Cents
	}
	assert.InDelta(t, major(12_000_000).Cents, principal, 12)
}
