// Package amortization computes fixed-payment loan schedules.
//
// Intermediate values are exact decimals; rounding to the minor unit
// (half-up) happens once, when a figure is returned.
package amortization

import (
	"github.com/shopspring/decimal"

	"dompet/internal/core"
)

// divPrecision is the number of decimal places kept by divisions.
const divPrecision = 20

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

type Result struct {
	MonthlyPayment core.Money `json:"monthly_payment"`
	TotalPayment   core.Money `json:"total_payment"`
	TotalInterest  core.Money `json:"total_interest"`
}

// Calculate returns the annuity payment for principal at annualRate percent
// over months. With a zero rate the payment is principal/months.
func Calculate(principal core.Money, annualRate float64, months int) (Result, error) {
	m, err := payment(principal, annualRate, months)
	if err != nil {
		return Result{}, err
	}
	total := m.Mul(decimal.NewFromInt(int64(months)))
	return Result{
		MonthlyPayment: toMoney(m),
		TotalPayment:   toMoney(total),
		TotalInterest:  toMoney(total.Sub(principal.Decimal())),
	}, nil
}

// Installment is one row of a repayment schedule.
type Installment struct {
	Number    int        `json:"number"`
	Payment   core.Money `json:"payment"`
	Principal core.Money `json:"principal"`
	Interest  core.Money `json:"interest"`
	Balance   core.Money `json:"balance"`
}

// Schedule splits every payment into interest and principal. Rows are
// rounded independently; the final row absorbs what is left of the balance
// so that it ends at zero.
func Schedule(principal core.Money, annualRate float64, months int) ([]Installment, error) {
	m, err := payment(principal, annualRate, months)
	if err != nil {
		return nil, err
	}
	r := monthlyRate(annualRate)
	balance := principal.Decimal()
	rows := make([]Installment, 0, months)
	for i := 1; i <= months; i++ {
		interest := balance.Mul(r)
		pay := m
		princ := pay.Sub(interest)
		if i == months {
			princ = balance
			pay = balance.Add(interest)
		}
		balance = balance.Sub(princ)
		rows = append(rows, Installment{
			Number:    i,
			Payment:   toMoney(pay),
			Principal: toMoney(princ),
			Interest:  toMoney(interest),
			Balance:   toMoney(balance),
		})
	}
	return rows, nil
}

func payment(principal core.Money, annualRate float64, months int) (decimal.Decimal, error) {
	if principal.Cents <= 0 {
		return decimal.Zero, core.NewInvalidInput("principal", "principal must be positive")
	}
	if months <= 0 {
		return decimal.Zero, core.NewInvalidInput("months", "term must be positive")
	}
	if annualRate < 0 {
		return decimal.Zero, core.NewInvalidInput("annual_rate", "rate cannot be negative")
	}
	p := principal.Decimal()
	n := decimal.NewFromInt(int64(months))
	r := monthlyRate(annualRate)
	if r.IsZero() {
		return p.DivRound(n, divPrecision), nil
	}
	growth := pow(decimal.NewFromInt(1).Add(r), months)
	return p.Mul(r).Mul(growth).DivRound(growth.Sub(decimal.NewFromInt(1)), divPrecision), nil
}

// pow raises base to n by squaring, keeping divPrecision places so long
// terms stay bounded in size.
func pow(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for ; n > 0; n >>= 1 {
		if n&1 == 1 {
			result = result.Mul(base).Round(divPrecision)
		}
		base = base.Mul(base).Round(divPrecision)
	}
	return result
}

func monthlyRate(annualRate float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRate).DivRound(hundred, divPrecision).DivRound(twelve, divPrecision)
}

func toMoney(major decimal.Decimal) core.Money {
	return core.Money{Cents: major.Shift(2).Round(0).IntPart()}
}
