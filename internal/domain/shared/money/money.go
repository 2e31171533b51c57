package money

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrOverflow         = errors.New("money: amount overflow")
)

// DefaultCurrency is the currency every charge is denominated in.
const DefaultCurrency = "USD"

// Money keeps amounts in the smallest currency unit (cents) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents is shorthand for an amount in DefaultCurrency.
func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	if (other.Amount > 0 && m.Amount > math.MaxInt64-other.Amount) ||
		(other.Amount < 0 && m.Amount < math.MinInt64-other.Amount) {
		return Money{}, ErrOverflow
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by a non-negative factor, failing on overflow.
func (m Money) Multiply(times int64) (Money, error) {
	if times < 0 {
		return Money{}, ErrOverflow
	}
	if times != 0 && (m.Amount > math.MaxInt64/times || m.Amount < math.MinInt64/times) {
		return Money{}, ErrOverflow
	}
	return Money{Amount: m.Amount * times, Currency: m.Currency}, nil
}

// Percent returns percent% of the amount rounded half up to the nearest unit.
func (m Money) Percent(percent int64) Money {
	if percent <= 0 || m.Amount <= 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	const percentBase = int64(100)
	whole := m.Amount / percentBase * percent
	rest := m.Amount % percentBase * percent
	return Money{Amount: whole + (rest+percentBase/2)/percentBase, Currency: m.Currency}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
