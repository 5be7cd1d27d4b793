// Package pricing implements the reference-price selection policy for
// an open position (spec §4.2).
package pricing

import (
	"errors"
	"sync"

	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned (wrapped, by callers) when the pricing policy
// exhausts every fallback with nothing to show (spec §7 NoPrice).
var ErrNoPrice = errors.New("pricing: no reference price available")

// Resolver resolves reference prices for the pricing policy's fallback
// chain. Satisfied by any domain.ReadOnlyCache (internal/cache.Fake in
// this repository); a Resolver-only fake suffices for unit tests.
type Resolver interface {
	MarkPrice(id domain.InstrumentID) (decimal.Decimal, bool)
	BestBid(id domain.InstrumentID) (decimal.Decimal, bool)
	BestAsk(id domain.InstrumentID) (decimal.Decimal, bool)
	LastPrice(id domain.InstrumentID) (decimal.Decimal, bool)
}

// BarCloseTracker supplies the most recent bar-close price the
// Portfolio itself has observed for an instrument (spec §4.2 step 4).
// This is intentionally not part of Resolver/ReadOnlyCache: bar prices
// are tracked by the Portfolio as data.bars.* events arrive (spec §6),
// not served by the external cache.
type BarCloseTracker interface {
	BarClose(id domain.InstrumentID) (decimal.Decimal, bool)
}

// Resolve implements spec §4.2's fallback chain for an open position's
// reference price:
//  1. If useMarkPrices: MARK.
//  2. Else BID for LONG, ASK for SHORT, LAST for FLAT.
//  3. Missing selected price: fall back to LAST.
//  4. Missing LAST: fall back to the most recent observed bar-close.
//  5. Still missing: (zero, false) — caller adds the instrument to
//     PendingCalcs.
func Resolve(resolver Resolver, bars BarCloseTracker, id domain.InstrumentID, side domain.PositionSide, useMarkPrices bool) (decimal.Decimal, bool) {
	if useMarkPrices {
		if p, ok := resolver.MarkPrice(id); ok {
			return p, true
		}
	} else {
		switch side {
		case domain.PositionSideLong:
			if p, ok := resolver.BestBid(id); ok {
				return p, true
			}
		case domain.PositionSideShort:
			if p, ok := resolver.BestAsk(id); ok {
				return p, true
			}
		}
	}

	if p, ok := resolver.LastPrice(id); ok {
		return p, true
	}

	if bars != nil {
		if p, ok := bars.BarClose(id); ok {
			return p, true
		}
	}

	return decimal.Zero, false
}

// BarCloseStore is the Portfolio-owned implementation of
// BarCloseTracker: it remembers the most recent Bar.Close observed per
// instrument, updated as data.bars.* events arrive (spec §6, gated by
// the bar_updates config option).
type BarCloseStore struct {
	mu     sync.RWMutex
	prices map[domain.InstrumentID]decimal.Decimal
}

// NewBarCloseStore returns an empty BarCloseStore.
func NewBarCloseStore() *BarCloseStore {
	return &BarCloseStore{prices: make(map[domain.InstrumentID]decimal.Decimal)}
}

// Update records the latest observed bar-close price for id.
func (s *BarCloseStore) Update(id domain.InstrumentID, close decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[id] = close
}

// BarClose implements BarCloseTracker.
func (s *BarCloseStore) BarClose(id domain.InstrumentID) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prices[id]
	return v, ok
}

// Reset clears all tracked bar-close prices (spec §5 reset()).
func (s *BarCloseStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = make(map[domain.InstrumentID]decimal.Decimal)
}
