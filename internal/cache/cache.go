// Package cache provides an in-memory implementation of
// domain.ReadOnlyCache for tests and local/demo wiring — the real cache
// is an out-of-scope collaborator (spec §1), so this fake is the only
// implementation this repository ships.
//
// Grounded on the teacher's internal/testing/mocks.go pattern: a
// mutex-guarded struct with Set* configuration methods rather than a
// generated mock.
package cache

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/shopspring/decimal"
)

// Fake is an in-memory, mutex-guarded ReadOnlyCache.
type Fake struct {
	mu sync.RWMutex

	accounts            map[string]*domain.Account // keyed by venue
	instruments         map[domain.InstrumentID]struct{}
	positions           map[domain.InstrumentID][]domain.Position
	positionAccounts    map[domain.PositionID]domain.AccountID
	betPositions        map[domain.PositionID]*domain.BetPosition
	openOrders          map[domain.AccountID][]domain.OpenOrder
	snapshots           map[domain.PositionID][]domain.SnapshotRecord
	snapshotInstruments map[domain.PositionID]domain.InstrumentID
	markPrices          map[domain.InstrumentID]decimal.Decimal
	bestBids            map[domain.InstrumentID]decimal.Decimal
	bestAsks            map[domain.InstrumentID]decimal.Decimal
	lastPrices          map[domain.InstrumentID]decimal.Decimal
	markRates           map[currencyPair]decimal.Decimal
	directedRates       map[directedPair]decimal.Decimal
}

type currencyPair struct{ from, to money.Currency }
type directedPair struct {
	from, to money.Currency
	side     domain.OrderSide
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		accounts:            make(map[string]*domain.Account),
		instruments:         make(map[domain.InstrumentID]struct{}),
		positions:           make(map[domain.InstrumentID][]domain.Position),
		positionAccounts:    make(map[domain.PositionID]domain.AccountID),
		betPositions:        make(map[domain.PositionID]*domain.BetPosition),
		openOrders:          make(map[domain.AccountID][]domain.OpenOrder),
		snapshots:           make(map[domain.PositionID][]domain.SnapshotRecord),
		snapshotInstruments: make(map[domain.PositionID]domain.InstrumentID),
		markPrices:          make(map[domain.InstrumentID]decimal.Decimal),
		bestBids:            make(map[domain.InstrumentID]decimal.Decimal),
		bestAsks:            make(map[domain.InstrumentID]decimal.Decimal),
		lastPrices:          make(map[domain.InstrumentID]decimal.Decimal),
		markRates:           make(map[currencyPair]decimal.Decimal),
		directedRates:       make(map[directedPair]decimal.Decimal),
	}
}

// NewPositionID generates a synthetic PositionId for test fixtures.
func NewPositionID() domain.PositionID {
	return domain.PositionID(uuid.NewString())
}

// SetAccount registers/replaces an account for venue.
func (f *Fake) SetAccount(venue string, acc *domain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[venue] = acc
}

// SetInstrumentExists registers id as known to the cache.
func (f *Fake) SetInstrumentExists(id domain.InstrumentID, exists bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exists {
		f.instruments[id] = struct{}{}
	} else {
		delete(f.instruments, id)
	}
}

// SetPositions replaces the full set of known positions (open+closed)
// for an instrument, tagging each with the owning account so
// OpenPositionsForAccount can scope by account.
func (f *Fake) SetPositions(id domain.InstrumentID, accountID domain.AccountID, positions []domain.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[id] = positions
	for _, p := range positions {
		f.positionAccounts[p.ID] = accountID
	}
}

// SetBetPosition registers/replaces a BetPosition.
func (f *Fake) SetBetPosition(bp *domain.BetPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.betPositions[bp.PositionID] = bp
}

// SetOpenOrders replaces the resting orders for an account.
func (f *Fake) SetOpenOrders(accountID domain.AccountID, orders []domain.OpenOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openOrders[accountID] = orders
}

// SetSnapshots replaces the historical snapshot history recorded for
// position id, originally belonging to instrument instrumentID (the
// association the cache needs to answer SnapshotIDs(instrumentID)
// after the live Position itself has been purged).
func (f *Fake) SetSnapshots(instrumentID domain.InstrumentID, id domain.PositionID, records []domain.SnapshotRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[id] = records
	f.snapshotInstruments[id] = instrumentID
}

// SetMarkPrice sets the authoritative mark price for an instrument.
func (f *Fake) SetMarkPrice(id domain.InstrumentID, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPrices[id] = price
}

// SetQuote sets the best bid/ask for an instrument.
func (f *Fake) SetQuote(id domain.InstrumentID, bid, ask decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bestBids[id] = bid
	f.bestAsks[id] = ask
}

// SetLastPrice sets the last-traded price for an instrument.
func (f *Fake) SetLastPrice(id domain.InstrumentID, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrices[id] = price
}

// SetMarkRate sets the mark cross-rate from -> to.
func (f *Fake) SetMarkRate(from, to money.Currency, rate decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRates[currencyPair{from, to}] = rate
}

// SetDirectedRate sets the venue-quote-driven cross-rate from -> to for
// a given order side.
func (f *Fake) SetDirectedRate(from, to money.Currency, side domain.OrderSide, rate decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directedRates[directedPair{from, to, side}] = rate
}

// Account implements domain.ReadOnlyCache.
func (f *Fake) Account(venue string) (*domain.Account, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	acc, ok := f.accounts[venue]
	return acc, ok
}

// PutAccount implements domain.ReadOnlyCache.
func (f *Fake) PutAccount(acc *domain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[acc.Venue] = acc
}

// InstrumentExists implements domain.ReadOnlyCache.
func (f *Fake) InstrumentExists(id domain.InstrumentID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.instruments[id]
	return ok
}

// OpenPositions implements domain.ReadOnlyCache.
func (f *Fake) OpenPositions(id domain.InstrumentID) []domain.Position {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var open []domain.Position
	for _, p := range f.positions[id] {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}

// Positions implements domain.ReadOnlyCache.
func (f *Fake) Positions(id domain.InstrumentID) []domain.Position {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.positions[id]
}

// OpenPositionsForAccount implements domain.ReadOnlyCache.
func (f *Fake) OpenPositionsForAccount(accountID domain.AccountID) []domain.Position {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []domain.Position
	for _, positions := range f.positions {
		for _, p := range positions {
			if p.IsOpen() && f.positionAccounts[p.ID] == accountID {
				out = append(out, p)
			}
		}
	}
	return out
}

// BetPosition implements domain.ReadOnlyCache.
func (f *Fake) BetPosition(id domain.PositionID) (*domain.BetPosition, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bp, ok := f.betPositions[id]
	return bp, ok
}

// OpenOrdersForAccount implements domain.ReadOnlyCache.
func (f *Fake) OpenOrdersForAccount(accountID domain.AccountID) []domain.OpenOrder {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.openOrders[accountID]
}

// SnapshotIDs implements domain.ReadOnlyCache.
func (f *Fake) SnapshotIDs(id domain.InstrumentID) []domain.PositionID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]domain.PositionID, 0, len(f.snapshots))
	for pid, records := range f.snapshots {
		if len(records) > 0 && f.snapshotInstruments[pid] == id {
			ids = append(ids, pid)
		}
	}
	return ids
}

// Snapshots implements domain.ReadOnlyCache.
func (f *Fake) Snapshots(id domain.PositionID) []domain.SnapshotRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshots[id]
}

// MarkPrice implements domain.ReadOnlyCache.
func (f *Fake) MarkPrice(id domain.InstrumentID) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.markPrices[id]
	return v, ok
}

// BestBid implements domain.ReadOnlyCache.
func (f *Fake) BestBid(id domain.InstrumentID) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.bestBids[id]
	return v, ok
}

// BestAsk implements domain.ReadOnlyCache.
func (f *Fake) BestAsk(id domain.InstrumentID) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.bestAsks[id]
	return v, ok
}

// LastPrice implements domain.ReadOnlyCache.
func (f *Fake) LastPrice(id domain.InstrumentID) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.lastPrices[id]
	return v, ok
}

// MarkRate implements domain.ReadOnlyCache.
func (f *Fake) MarkRate(from, to money.Currency) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.markRates[currencyPair{from, to}]
	return v, ok
}

// DirectedRate implements domain.ReadOnlyCache.
func (f *Fake) DirectedRate(from, to money.Currency, side domain.OrderSide) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.directedRates[directedPair{from, to, side}]
	return v, ok
}
