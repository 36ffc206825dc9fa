// Package core holds the payment domain model: events, per-account
// aggregates and the currency-prefixed amount representation shared by
// the ingestion and query paths.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount string does not match the
// "<CUR> <decimal>" wire format.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a signed monetary value prefixed with its ISO currency code.
// On the wire it is a single string such as "EUR 120.50" or "USD -33.10".
// Arithmetic is done on the exact decimal value, never on floats.
type Amount struct {
	Currency string
	Value    decimal.Decimal
}

// ParseAmount parses the "<CUR> <decimal>" wire form.
//
// Examples:
//
//	ParseAmount("EUR 120.50") -> {EUR 120.50}, nil
//	ParseAmount("USD -33.10") -> {USD -33.10}, nil
//	ParseAmount("12.34")      -> zero, ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	currency, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !validCurrencyCode(currency) {
		return Amount{}, fmt.Errorf("%w: bad currency code in %q", ErrInvalidAmount, s)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(rest))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{Currency: currency, Value: value}, nil
}

// String renders the wire form.
func (a Amount) String() string {
	return a.Currency + " " + a.Value.String()
}

// IsDebit reports whether the amount is strictly positive.
func (a Amount) IsDebit() bool { return a.Value.IsPositive() }

// IsCredit reports whether the amount is strictly negative.
func (a Amount) IsCredit() bool { return a.Value.IsNegative() }

// Convert returns the amount restated in currency, the magnitude
// multiplied by rate with exact decimal arithmetic. Sign is preserved.
func (a Amount) Convert(currency string, rate decimal.Decimal) Amount {
	return Amount{Currency: currency, Value: a.Value.Mul(rate)}
}

// MarshalJSON encodes the amount as its wire string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes the "<CUR> <decimal>" wire string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: not a JSON string: %s", ErrInvalidAmount, data)
	}
	parsed, err := ParseAmount(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func validCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
