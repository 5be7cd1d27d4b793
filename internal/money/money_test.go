package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_QuantizesToPrecision(t *testing.T) {
	t.Parallel()
	m := New(decimal.RequireFromString("1.005"), USD)
	// round-half-away-from-zero: 1.005 -> 1.01 at 2dp
	assert.Equal(t, int64(101), m.Raw())
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("1.01")))
}

func TestFromRaw_RoundTrips(t *testing.T) {
	t.Parallel()
	m := FromRaw(12345, USD)
	assert.Equal(t, int64(12345), m.Raw())
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("123.45")))
}

func TestAdd_SameCurrency(t *testing.T) {
	t.Parallel()
	a := FromRaw(100, USD)
	b := FromRaw(50, USD)
	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(150), sum.Raw())
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	t.Parallel()
	a := FromRaw(100, USD)
	b := FromRaw(50, EUR)
	_, err := Add(a, b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestSub_CurrencyMismatch(t *testing.T) {
	t.Parallel()
	_, err := Sub(FromRaw(1, USD), FromRaw(1, EUR))
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestEqual_ExactNotApproximate(t *testing.T) {
	t.Parallel()
	a := FromRaw(100, USD)
	b := FromRaw(101, USD)
	assert.False(t, a.Equal(b), "Equal must be exact, never epsilon-based")
	assert.True(t, a.Equal(FromRaw(100, USD)))
}

func TestEqual_DifferentCurrencySameRaw(t *testing.T) {
	t.Parallel()
	a := FromRaw(100, USD)
	b := FromRaw(100, EUR)
	assert.False(t, a.Equal(b))
}

func TestSign(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, FromRaw(1, USD).Sign())
	assert.Equal(t, -1, FromRaw(-1, USD).Sign())
	assert.Equal(t, 0, FromRaw(0, USD).Sign())
}

func TestNeg(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(-100), FromRaw(100, USD).Neg().Raw())
}

func TestZeroCurrencyIsNone(t *testing.T) {
	t.Parallel()
	assert.True(t, None.IsNone())
	assert.False(t, USD.IsNone())
}

func TestNewCurrency_InvalidPrecision(t *testing.T) {
	t.Parallel()
	_, err := NewCurrency("XXX", 10)
	require.Error(t, err)
}
