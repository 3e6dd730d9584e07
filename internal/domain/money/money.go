// Package money implements currency-tagged decimal amounts.
//
// Amounts use exact base-10 arithmetic. Currency codes are ISO 4217 and are
// canonicalised on construction; arithmetic and ordering across currencies
// fail with ErrCurrencyMismatch.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrCurrencyMismatch is returned when two amounts of different
	// currencies are combined or compared.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInvalidCurrency is returned for codes that are not ISO 4217.
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrInvalidAmount is returned when an amount cannot be parsed as a decimal.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Money is an immutable amount in a single currency.
//
// The zero value has no currency and only combines with other zero values.
type Money struct {
	amount decimal.Decimal
	code   string
	scale  int32
}

// New returns amount in the currency identified by code.
func New(amount decimal.Decimal, code string) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidCurrency, "%q", code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Money{
		amount: amount,
		code:   unit.String(),
		scale:  int32(scale),
	}, nil
}

// Parse returns the decimal string amount in the currency identified by code.
func Parse(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	return New(d, code)
}

// MustParse is like Parse but panics on error. It is meant for constants and
// tests.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the currency identified by code.
func Zero(code string) (Money, error) {
	return New(decimal.Zero, code)
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-case ISO 4217 code.
func (m Money) Currency() string { return m.code }

// Scale returns the number of minor-unit digits of the currency.
func (m Money) Scale() int32 { return m.scale }

func (m Money) sameCurrency(other Money) error {
	if m.code != other.code {
		return errors.Wrapf(ErrCurrencyMismatch, "%s and %s", m.code, other.code)
	}
	return nil
}

func (m Money) with(amount decimal.Decimal) Money {
	m.amount = amount
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return m.with(m.amount.Add(other.amount)), nil
}

// Sub returns m - other.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return m.with(m.amount.Sub(other.amount)), nil
}

// Mul scales the amount by factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return m.with(m.amount.Mul(factor))
}

// MulInt scales the amount by an integer factor such as a quantity.
func (m Money) MulInt(factor int64) Money {
	return m.Mul(decimal.NewFromInt(factor))
}

// Neg returns -m.
func (m Money) Neg() Money {
	return m.with(m.amount.Neg())
}

// Round rounds the amount to the standard minor-unit scale of the currency.
func (m Money) Round() Money {
	return m.with(m.amount.Round(m.scale))
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Equal reports whether m and other have the same currency and numerically
// equal amounts ("2.0 USD" equals "2.00 USD"). Values in different currencies
// are simply unequal; use Cmp to get ErrCurrencyMismatch instead.
func (m Money) Equal(other Money) bool {
	return m.code == other.code && m.amount.Equal(other.amount)
}

// Cmp compares amounts of the same currency, returning -1, 0 or +1.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) (Money, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return other, nil
}

// String formats the amount at the currency scale followed by the code,
// e.g. "8.00 USD".
func (m Money) String() string {
	if m.code == "" {
		return m.amount.String()
	}
	return m.amount.StringFixed(m.scale) + " " + m.code
}
