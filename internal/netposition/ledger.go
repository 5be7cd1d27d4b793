// Package netposition maintains the per-instrument signed net-position
// ledger (spec §4.4).
package netposition

import (
	"sync"

	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger maps InstrumentID -> net signed quantity. Rebuilt from the
// read-only cache's open positions on every PositionEvent (spec §4.4
// invariant).
//
// The Portfolio's event handlers run single-threaded per spec §5, but
// the ledger is also read from internal/adminapi's HTTP surface on a
// separate goroutine, so unlike most of this core it guards its map
// with a RWMutex rather than relying on the caller's serialization —
// one of the deliberate exceptions to "no internal locking", alongside
// domain.PendingCalcs, pricing.BarCloseStore and portfolio.Portfolio's
// own mutex (SPEC_FULL §4.4).
type Ledger struct {
	mu  sync.RWMutex
	net map[domain.InstrumentID]decimal.Decimal
	log zerolog.Logger
}

// New creates an empty Ledger.
func New(log zerolog.Logger) *Ledger {
	return &Ledger{
		net: make(map[domain.InstrumentID]decimal.Decimal),
		log: log.With().Str("component", "netposition").Logger(),
	}
}

// Rebuild recomputes the net-position entry for id from its currently
// open positions. If the sum differs from the prior value, the entry
// is replaced and a log line emitted (spec §4.4).
func (l *Ledger) Rebuild(id domain.InstrumentID, openPositions []domain.Position) {
	sum := decimal.Zero
	for _, p := range openPositions {
		sum = sum.Add(p.SignedQuantity())
	}

	l.mu.Lock()
	prior, existed := l.net[id]
	changed := !existed || !prior.Equal(sum)
	l.net[id] = sum
	l.mu.Unlock()

	if changed {
		l.log.Info().
			Stringer("instrument", id).
			Str("prior", prior.String()).
			Str("net", sum.String()).
			Msg("net position changed")
	}
}

// Net returns the net signed quantity for id, defaulting to zero.
func (l *Ledger) Net(id domain.InstrumentID) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.net[id]; ok {
		return v
	}
	return decimal.Zero
}

// IsNetLong reports whether the net position is strictly positive.
func (l *Ledger) IsNetLong(id domain.InstrumentID) bool {
	return l.Net(id).Sign() > 0
}

// IsNetShort reports whether the net position is strictly negative.
func (l *Ledger) IsNetShort(id domain.InstrumentID) bool {
	return l.Net(id).Sign() < 0
}

// IsFlat reports whether the net position is exactly zero.
func (l *Ledger) IsFlat(id domain.InstrumentID) bool {
	return l.Net(id).Sign() == 0
}

// IsCompletelyFlat reports whether every tracked instrument is flat
// (spec §4.4, §8 property 2).
func (l *Ledger) IsCompletelyFlat() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, v := range l.net {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

// Reset clears all tracked instruments (spec §5 reset()).
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.net = make(map[domain.InstrumentID]decimal.Decimal)
}
