// Package money provides fixed-precision signed money arithmetic tagged
// by currency.
//
// Money is deliberately not a float64: spec-driven financial aggregation
// (realized/unrealized PnL, net exposure) must not accumulate rounding
// drift across thousands of events. Money stores its amount as a raw
// int64 in the currency's minor units and only touches decimal.Decimal
// at explicit conversion boundaries (New, Decimal).
package money

import "fmt"

// Currency is a symbolic tag with a fixed decimal precision (0..9 minor
// digits). Immutable once constructed.
type Currency struct {
	code      string
	precision uint8
}

// None is the zero Currency, used where an account has no configured
// base currency (spec §4.3: FX rate is exactly 1.0 when base is none).
var None Currency

// MustCurrency constructs a Currency, panicking on an invalid precision.
// Intended for package-level var declarations of well-known currencies,
// not for parsing untrusted input.
func MustCurrency(code string, precision uint8) Currency {
	c, err := NewCurrency(code, precision)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCurrency validates and constructs a Currency.
func NewCurrency(code string, precision uint8) (Currency, error) {
	if code == "" {
		return Currency{}, fmt.Errorf("money: currency code must not be empty")
	}
	if precision > 9 {
		return Currency{}, fmt.Errorf("money: currency %s precision %d exceeds maximum of 9", code, precision)
	}
	return Currency{code: code, precision: precision}, nil
}

// Code returns the currency's symbolic code, e.g. "USD".
func (c Currency) Code() string { return c.code }

// Precision returns the number of minor-unit decimal digits.
func (c Currency) Precision() uint8 { return c.precision }

// IsNone reports whether this is the zero/unset Currency.
func (c Currency) IsNone() bool { return c == Currency{} }

// Equal reports whether two currencies have the same code. Precision is
// part of a currency's identity at construction time but two Currency
// values are considered the same currency purely by code, matching how
// spec.md's Money equality check (§9) treats currency as the tag.
func (c Currency) Equal(other Currency) bool { return c.code == other.code }

func (c Currency) String() string { return c.code }

// scale returns 10^precision as an int64 multiplier.
func (c Currency) scale() int64 {
	s := int64(1)
	for i := uint8(0); i < c.precision; i++ {
		s *= 10
	}
	return s
}

var (
	// USD, EUR, GBP, JPY and BTC are convenience well-known currencies
	// used by the test suite; production deployments register their own
	// venue currencies via NewCurrency.
	USD = MustCurrency("USD", 2)
	EUR = MustCurrency("EUR", 2)
	GBP = MustCurrency("GBP", 2)
	JPY = MustCurrency("JPY", 0)
	BTC = MustCurrency("BTC", 8)
)
