// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type used for every ledger amount
// and the functions that parse amounts and quantities typed by chat members.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// moneyPlaces is the number of fractional digits kept for every amount.
const moneyPlaces = 2

// maxCents bounds amounts so they always fit the store's integer cents column.
const maxCents = 99_999_999_999_999

// Money is a signed amount with exactly two fractional digits.
// The zero value is 0.00 and ready to use.
type Money struct {
	d decimal.Decimal
}

// NewMoney rounds d half away from zero to two places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(moneyPlaces)}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -moneyPlaces)}
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.d.Shift(moneyPlaces).IntPart()
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + o without any intermediate rounding.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp compares m and o and returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports whether m and o hold the same amount.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// String formats the amount with exactly two fractional digits, e.g. "-50.00".
func (m Money) String() string {
	return m.d.StringFixed(moneyPlaces)
}

// Signed formats the amount with an explicit sign, e.g. "+100.00".
func (m Money) Signed() string {
	if m.d.IsNegative() {
		return m.String()
	}
	return "+" + m.String()
}

// ParseAmount converts user text such as "+100", "-50.5" or "12,345" to Money.
//
// An optional leading sign is accepted, both dot and comma are accepted as the
// decimal separator, and the magnitude is rounded half-up on the third decimal
// place before the sign is applied. Zero, exponents, thousands separators and
// anything that is not plain digits are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("-12,345") -> -12.35
//	ParseAmount("1.005")  -> 1.01
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	negative := false
	switch {
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "-"):
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	d, err := parseUnsignedDecimal(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m := NewMoney(d)
	if m.IsZero() {
		return Money{}, fmt.Errorf("%w: amount must not be zero", ErrInvalidAmount)
	}
	if m.Cents() > maxCents {
		return Money{}, fmt.Errorf("%w: amount too large", ErrInvalidAmount)
	}
	if negative {
		m = m.Neg()
	}
	return m, nil
}

// ParseQuantity parses a strictly positive quantity such as "3" or "0,5".
// Quantities keep the precision they were typed with.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := parseUnsignedDecimal(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return d, nil
}

// parseUnsignedDecimal accepts only "digits[.digits]" (comma allowed as separator).
func parseUnsignedDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" {
		parts[0] = "0"
	}
	for _, p := range parts {
		for _, r := range p {
			if r > unicode.MaxASCII || !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if len(parts) == 2 && parts[1] == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(strings.Join(parts, "."))
}
