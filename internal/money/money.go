package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned by Add/Sub when operands carry
// different currencies (spec §4.1, §7 CurrencyMismatch). Arithmetic
// across currencies always requires an explicit FX step; there is no
// implicit conversion in this package.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is a fixed-point signed amount at its Currency's precision,
// stored as a raw minor-unit integer (spec §3 "raw signed integer,
// Currency").
type Money struct {
	raw int64
	ccy Currency
}

// Zero returns a zero Money value in the given currency.
func Zero(ccy Currency) Money { return Money{ccy: ccy} }

// FromRaw constructs Money directly from a minor-unit integer without
// re-parsing or re-quantizing (spec §4.1 "from_raw(raw, currency)").
func FromRaw(raw int64, ccy Currency) Money { return Money{raw: raw, ccy: ccy} }

// New quantizes a decimal amount to ccy's precision (round-half-away-
// from-zero, matching decimal.Decimal.Round) and returns the resulting
// Money. This is the one place a lossy/arbitrary-precision value is
// allowed to enter Money; everywhere else operates on the raw integer.
func New(amount decimal.Decimal, ccy Currency) Money {
	scaled := amount.Shift(int32(ccy.precision)).Round(0)
	return Money{raw: scaled.IntPart(), ccy: ccy}
}

// Currency returns the Money's currency tag.
func (m Money) Currency() Currency { return m.ccy }

// Raw returns the underlying minor-unit integer.
func (m Money) Raw() int64 { return m.raw }

// Decimal converts back to a decimal.Decimal amount (e.g. 150 minor
// units at precision 2 becomes 1.50). This is the accessor callers use
// to aggregate across currencies via the FX policy (internal/fx); it is
// exact, unlike the as_f64-then-requantize pattern spec §9 warns about.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.raw, 0).Shift(-int32(m.ccy.precision))
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.raw == 0 }

// Sign returns -1, 0 or 1 matching the sign of the raw amount.
func (m Money) Sign() int {
	switch {
	case m.raw < 0:
		return -1
	case m.raw > 0:
		return 1
	default:
		return 0
	}
}

// Neg returns the negation of m.
func (m Money) Neg() Money { return Money{raw: -m.raw, ccy: m.ccy} }

// Add returns a + b. Both operands must share a currency (by Code);
// otherwise ErrCurrencyMismatch (spec §4.1).
func Add(a, b Money) (Money, error) {
	if !a.ccy.Equal(b.ccy) {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.ccy, b.ccy)
	}
	return Money{raw: a.raw + b.raw, ccy: a.ccy}, nil
}

// Sub returns a - b. Both operands must share a currency; otherwise
// ErrCurrencyMismatch (spec §4.1).
func Sub(a, b Money) (Money, error) {
	if !a.ccy.Equal(b.ccy) {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.ccy, b.ccy)
	}
	return Money{raw: a.raw - b.raw, ccy: a.ccy}, nil
}

// MustAdd panics on currency mismatch. Reserved for call sites that have
// already validated same-currency operands (e.g. accumulating a single
// instrument's own-currency PnL contributions) where a mismatch would be
// a programmer error, not a runtime condition.
func MustAdd(a, b Money) Money {
	r, err := Add(a, b)
	if err != nil {
		panic(err)
	}
	return r
}

// Equal reports exact equality of raw amount and currency code. Per
// spec §9's open question, this is intentionally strict equality, never
// an epsilon comparison — the snapshot combination rule (internal/pnl)
// depends on this being exact.
func (m Money) Equal(other Money) bool {
	return m.raw == other.raw && m.ccy.Equal(other.ccy)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(int32(m.ccy.precision)), m.ccy.code)
}
