package pricing

import (
	"testing"

	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	mark, bid, ask, last decimal.Decimal
	hasMark, hasBid, hasAsk, hasLast bool
}

func (f *fakeResolver) MarkPrice(domain.InstrumentID) (decimal.Decimal, bool) { return f.mark, f.hasMark }
func (f *fakeResolver) BestBid(domain.InstrumentID) (decimal.Decimal, bool)   { return f.bid, f.hasBid }
func (f *fakeResolver) BestAsk(domain.InstrumentID) (decimal.Decimal, bool)   { return f.ask, f.hasAsk }
func (f *fakeResolver) LastPrice(domain.InstrumentID) (decimal.Decimal, bool) { return f.last, f.hasLast }

type fakeBars struct {
	close  decimal.Decimal
	hasIt  bool
}

func (f *fakeBars) BarClose(domain.InstrumentID) (decimal.Decimal, bool) { return f.close, f.hasIt }

var eurusd = domain.NewInstrumentID("EUR/USD", "SIM")

func TestResolve_UseMarkPrices(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{mark: decimal.NewFromFloat(1.1), hasMark: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideLong, true)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.1)))
}

func TestResolve_LongUsesBid(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{bid: decimal.NewFromFloat(1.1005), hasBid: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideLong, false)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.1005)))
}

func TestResolve_ShortUsesAsk(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{ask: decimal.NewFromFloat(1.1007), hasAsk: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideShort, false)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.1007)))
}

func TestResolve_FallsBackToLastWhenSideMissing(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{last: decimal.NewFromFloat(1.2), hasLast: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideLong, false)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.2)))
}

func TestResolve_MarkMissingFallsBackToLast(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{last: decimal.NewFromFloat(1.3), hasLast: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideFlat, true)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.3)))
}

func TestResolve_FallsBackToBarClose(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{}
	bars := &fakeBars{close: decimal.NewFromFloat(1.4), hasIt: true}
	p, ok := Resolve(r, bars, eurusd, domain.PositionSideLong, false)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.4)))
}

func TestResolve_NoneAvailable(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{}
	_, ok := Resolve(r, &fakeBars{}, eurusd, domain.PositionSideLong, false)
	assert.False(t, ok)
}

func TestResolve_FlatUsesLast(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{last: decimal.NewFromFloat(5), hasLast: true}
	p, ok := Resolve(r, nil, eurusd, domain.PositionSideFlat, false)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(5)))
}

func TestBarCloseStore_UpdateAndLookup(t *testing.T) {
	t.Parallel()
	s := NewBarCloseStore()
	_, ok := s.BarClose(eurusd)
	assert.False(t, ok)

	s.Update(eurusd, decimal.NewFromFloat(1.25))
	p, ok := s.BarClose(eurusd)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.25)))
}

func TestBarCloseStore_Reset(t *testing.T) {
	t.Parallel()
	s := NewBarCloseStore()
	s.Update(eurusd, decimal.NewFromFloat(1.25))
	s.Reset()
	_, ok := s.BarClose(eurusd)
	assert.False(t, ok)
}
