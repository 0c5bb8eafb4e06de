package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code
type Currency string

// ILS is the currency the console bills in
const ILS Currency = "ILS"

// MinorUnits is the number of decimal places charged amounts carry
const MinorUnits int32 = 2

var (
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrNoParts          = errors.New("money: split into zero parts")
)

var hundred = decimal.NewFromInt(100)

// Money is an immutable amount in one currency. Intermediate results keep
// full precision until Round is called.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney returns amount in currency
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// NewMoneyILS returns amount in shekels
func NewMoneyILS(amount decimal.Decimal) Money {
	return NewMoney(amount, ILS)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

// Add sums two amounts of the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return NewMoney(m.amount.Add(other.amount), m.currency), nil
}

// Percent returns percent of m, unrounded
func (m Money) Percent(percent decimal.Decimal) Money {
	return NewMoney(m.amount.Mul(percent).Div(hundred), m.currency)
}

// Split divides m into parts equal shares, unrounded
func (m Money) Split(parts int) (Money, error) {
	if parts <= 0 {
		return Money{}, ErrNoParts
	}
	return NewMoney(m.amount.Div(decimal.NewFromInt(int64(parts))), m.currency), nil
}

// Round rounds half away from zero to MinorUnits places
func (m Money) Round() Money {
	return NewMoney(m.amount.Round(MinorUnits), m.currency)
}

// String renders "250.00 ILS"
func (m Money) String() string {
	return m.amount.StringFixed(MinorUnits) + " " + string(m.currency)
}

// MarshalJSON writes the amount as a fixed-point string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{m.amount.StringFixed(MinorUnits), m.currency})
}
