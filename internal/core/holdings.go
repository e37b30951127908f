package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dompet/internal/period"
)

// HoldingKind discriminates the investment variants.
type HoldingKind string

const (
	KindStock   HoldingKind = "stock"
	KindDeposit HoldingKind = "deposit"
	KindGold    HoldingKind = "gold"
	KindFund    HoldingKind = "fund"
)

// SharesPerLot is the exchange lot size used to value stock holdings.
const SharesPerLot = 100

// Holding is an investment position. Each variant carries its own fields;
// callers switch on Kind or type-assert to the concrete type.
type Holding interface {
	HoldingID() string
	Kind() HoldingKind
	CostBasis() Money
	CurrentValue() Money
	Validate() error
}

type StockHolding struct {
	ID           string          `json:"id"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Securities   string          `json:"securities"`
	Lots         decimal.Decimal `json:"lots"`
	BuyPrice     Money           `json:"buy_price"`     // per share
	CurrentPrice Money           `json:"current_price"` // per share
	BuyDate      time.Time       `json:"buy_date"`
}

type DepositHolding struct {
	ID            string    `json:"id"`
	BankName      string    `json:"bank_name"`
	Principal     Money     `json:"principal"`
	TenorMonths   int       `json:"tenor_months"`
	InterestRate  float64   `json:"interest_rate"` // annual percent
	StartDate     time.Time `json:"start_date"`
	MaturityDate  time.Time `json:"maturity_date"`
	IsAutoRenewal bool      `json:"is_auto_renewal"`
}

type GoldHolding struct {
	ID                  string          `json:"id"`
	GoldType            string          `json:"gold_type"`
	WeightGrams         decimal.Decimal `json:"weight_grams"`
	BuyPricePerGram     Money           `json:"buy_price_per_gram"`
	CurrentPricePerGram Money           `json:"current_price_per_gram"`
	PurchaseLocation    string          `json:"purchase_location"`
	BuyDate             time.Time       `json:"buy_date"`
	CertificateNumber   string          `json:"certificate_number"`
}

type FundHolding struct {
	ID          string          `json:"id"`
	ProductName string          `json:"product_name"`
	FundManager string          `json:"fund_manager"`
	FundType    string          `json:"fund_type"`
	Units       decimal.Decimal `json:"units"`
	BuyNAV      Money           `json:"buy_nav"`
	CurrentNAV  Money           `json:"current_nav"`
	BuyDate     time.Time       `json:"buy_date"`
}

func (h StockHolding) HoldingID() string { return h.ID }
func (StockHolding) Kind() HoldingKind   { return KindStock }

func (h StockHolding) CostBasis() Money {
	return scale(h.BuyPrice, h.Lots.Mul(decimal.NewFromInt(SharesPerLot)))
}

func (h StockHolding) CurrentValue() Money {
	return scale(h.CurrentPrice, h.Lots.Mul(decimal.NewFromInt(SharesPerLot)))
}

func (h StockHolding) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" {
		return NewInvalidInput("ticker", "ticker cannot be empty")
	}
	if !h.Lots.IsPositive() {
		return NewInvalidInput("lots", "lots must be positive")
	}
	if h.BuyPrice.Cents < 0 || h.CurrentPrice.Cents < 0 {
		return NewInvalidInput("price", "prices cannot be negative")
	}
	return nil
}

func (h DepositHolding) HoldingID() string { return h.ID }
func (DepositHolding) Kind() HoldingKind   { return KindDeposit }
func (h DepositHolding) CostBasis() Money  { return h.Principal }
func (h DepositHolding) CurrentValue() Money {
	return h.Principal
}

// Matured returns h with MaturityDate defaulted to StartDate plus the
// tenor.
func (h DepositHolding) Matured() DepositHolding {
	if h.MaturityDate.IsZero() && !h.StartDate.IsZero() {
		h.MaturityDate = period.AddMonths(h.StartDate, h.TenorMonths)
	}
	return h
}

// NormalizeHolding fills the derived fields of h.
func NormalizeHolding(h Holding) Holding {
	if d, ok := h.(DepositHolding); ok {
		return d.Matured()
	}
	return h
}

// ProjectedInterest is simple interest over the tenor.
func (h DepositHolding) ProjectedInterest() Money {
	rate := decimal.NewFromFloat(h.InterestRate).Div(decimal.NewFromInt(100))
	years := decimal.NewFromInt(int64(h.TenorMonths)).Div(decimal.NewFromInt(12))
	return scale(h.Principal, rate.Mul(years))
}

func (h DepositHolding) Validate() error {
	if strings.TrimSpace(h.BankName) == "" {
		return NewInvalidInput("bank_name", "bank name cannot be empty")
	}
	if err := h.Principal.Validate(); err != nil {
		return NewInvalidInput("amount", err.Error())
	}
	if h.TenorMonths <= 0 {
		return NewInvalidInput("tenor_months", "tenor must be positive")
	}
	if h.InterestRate < 0 {
		return NewInvalidInput("interest_rate", "interest rate cannot be negative")
	}
	return nil
}

func (h GoldHolding) HoldingID() string { return h.ID }
func (GoldHolding) Kind() HoldingKind   { return KindGold }
func (h GoldHolding) CostBasis() Money  { return scale(h.BuyPricePerGram, h.WeightGrams) }
func (h GoldHolding) CurrentValue() Money {
	return scale(h.CurrentPricePerGram, h.WeightGrams)
}

func (h GoldHolding) Validate() error {
	if !h.WeightGrams.IsPositive() {
		return NewInvalidInput("weight_grams", "weight must be positive")
	}
	if h.BuyPricePerGram.Cents < 0 || h.CurrentPricePerGram.Cents < 0 {
		return NewInvalidInput("price", "prices cannot be negative")
	}
	return nil
}

func (h FundHolding) HoldingID() string { return h.ID }
func (FundHolding) Kind() HoldingKind   { return KindFund }
func (h FundHolding) CostBasis() Money  { return scale(h.BuyNAV, h.Units) }
func (h FundHolding) CurrentValue() Money {
	return scale(h.CurrentNAV, h.Units)
}

func (h FundHolding) Validate() error {
	if strings.TrimSpace(h.ProductName) == "" {
		return NewInvalidInput("product_name", "product name cannot be empty")
	}
	if !h.Units.IsPositive() {
		return NewInvalidInput("units", "units must be positive")
	}
	if h.BuyNAV.Cents < 0 || h.CurrentNAV.Cents < 0 {
		return NewInvalidInput("nav", "NAV cannot be negative")
	}
	return nil
}

// ParseHoldingKind maps a discriminator string to a HoldingKind.
func ParseHoldingKind(s string) (HoldingKind, error) {
	switch k := HoldingKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindStock, KindDeposit, KindGold, KindFund:
		return k, nil
	}
	return "", NewInvalidInput("kind", fmt.Sprintf("unknown holding kind %q", s))
}

func scale(m Money, factor decimal.Decimal) Money {
	return Money{Cents: decimal.NewFromInt(m.Cents).Mul(factor).Round(0).IntPart()}
}

// EncodeHolding serializes a holding's variant fields.
func EncodeHolding(h Holding) ([]byte, error) {
	return json.Marshal(h)
}

// DecodeHolding restores a holding from its kind and encoded fields.
func DecodeHolding(kind HoldingKind, data []byte) (Holding, error) {
	var (
		h   Holding
		err error
	)
	switch kind {
	case KindStock:
		var v StockHolding
		err = json.Unmarshal(data, &v)
		h = v
	case KindDeposit:
		var v DepositHolding
		err = json.Unmarshal(data, &v)
		h = v
	case KindGold:
		var v GoldHolding
		err = json.Unmarshal(data, &v)
		h = v
	case KindFund:
		var v FundHolding
		err = json.Unmarshal(data, &v)
		h = v
	default:
		return nil, NewInvalidInput("kind", fmt.Sprintf("unknown holding kind %q", kind))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s holding: %w", kind, err)
	}
	return h, nil
}

// WithHoldingID returns a copy of h carrying id.
func WithHoldingID(h Holding, id string) Holding {
	switch v := h.(type) {
	case StockHolding:
		v.ID = id
		return v
	case DepositHolding:
		v.ID = id
		return v
	case GoldHolding:
		v.ID = id
		return v
	case FundHolding:
		v.ID = id
		return v
	}
	return h
}
