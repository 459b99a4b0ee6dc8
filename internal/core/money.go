// Package core holds the ledger's domain types: transactions, their kind,
// money in minor units, the time-window policy and the aggregate shapes.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). All arithmetic stays in int64.
type Money struct {
	Cents int64
}

// MaxAmountCents is the largest single amount accepted, 999,999,999,999.99.
// Sums over many rows stay far from the int64 limit.
const MaxAmountCents int64 = 99_999_999_999_999

// Cents is shorthand for Money{Cents: c}.
func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount in major units with two decimals, e.g. "12.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalText(b []byte) error {
	d, err := decimal.NewFromString(strings.TrimSpace(string(b)))
	if err != nil || d.Shift(2).Abs().GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return ErrInvalidAmount
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// MoneyFromDecimal converts a major-unit decimal to cents, rounding half
// away from zero.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Average divides total by count, rounding half away from zero to the cent.
// A zero count yields zero.
func Average(total Money, count int64) Money {
	if count == 0 {
		return Money{}
	}
	q := decimal.NewFromInt(total.Cents).Div(decimal.NewFromInt(count))
	return Money{Cents: q.Round(0).IntPart()}
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, zero amounts or
// amounts above MaxAmountCents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 || cents > MaxAmountCents {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney parses user input into a positive Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}
