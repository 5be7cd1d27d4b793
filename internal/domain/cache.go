package domain

import (
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/shopspring/decimal"
)

// OpenOrder is the read-only view of a resting order the Portfolio
// needs for initialize_orders/update_orders (spec §4.6): just enough to
// filter to passive orders and report them to the accounts-manager.
type OpenOrder struct {
	AccountID    AccountID
	InstrumentID InstrumentID
	Kind         OrderKind
}

// SnapshotRecord is one historical Position lifecycle's extracted
// realized PnL, as stored (pickled, per spec §9) by the upstream
// position-management system. The Portfolio never needs the full
// historical Position graph — only this.
type SnapshotRecord struct {
	RealizedPnL money.Money
}

// ReadOnlyCache is the external, out-of-scope collaborator (spec §1)
// giving the Portfolio a consistent, read-only view of accounts,
// instruments, positions, orders, prices, FX rates and historical
// position snapshots for the duration of one event handler (spec §5).
//
// The Portfolio borrows this cache; it never owns it (DESIGN NOTES,
// "cyclic references... broken via the read-only cache facade").
type ReadOnlyCache interface {
	// Account returns the account registered for venue, or (nil, false)
	// if none is registered yet (spec §7 MissingAccount).
	Account(venue string) (*Account, bool)

	// PutAccount writes back an updated Account (spec §4.6
	// update_account "write back updated account state via the cache").
	PutAccount(acc *Account)

	// InstrumentExists reports whether the instrument is known to the
	// cache (spec §7 MissingInstrument).
	InstrumentExists(id InstrumentID) bool

	// OpenPositions returns all currently-open positions for an
	// instrument, regardless of account (spec §4.4 net-position ledger
	// is computed over "all open p with p.instrument_id == I").
	OpenPositions(id InstrumentID) []Position

	// Positions returns every position currently known for instrument id,
	// open or closed, that has not yet been purged into a historical
	// snapshot. The PnL engine's snapshot-combination rule (spec §4.5)
	// needs both open and recently-closed positions to tell Case 2/3/3a
	// apart from Case 1 (a PositionId present only in snapshot history).
	Positions(id InstrumentID) []Position

	// OpenPositionsForAccount returns all currently-open positions
	// belonging to account, across instruments (used by
	// initialize_positions to enumerate "every instrument with open
	// positions", spec §4.6).
	OpenPositionsForAccount(accountID AccountID) []Position

	// BetPosition looks up the BetPosition for a PositionId, or
	// (nil, false) if none exists yet (spec §4.5 MissingBetPosition).
	BetPosition(id PositionID) (*BetPosition, bool)

	// OpenOrdersForAccount returns resting orders for initialize_orders
	// and the post-fill update_orders re-invocation (spec §4.6).
	OpenOrdersForAccount(accountID AccountID) []OpenOrder

	// SnapshotIDs returns the current set of PositionIds that have at
	// least one historical snapshot for instrument id (spec §4.5
	// "current snapshot-ID set").
	SnapshotIDs(id InstrumentID) []PositionID

	// Snapshots returns all historical snapshots recorded for a
	// PositionId, oldest first. Their count is compared against a
	// tracked processed_count to detect growth (replay only the new
	// ones) or regression (purge, trigger full rebuild) — spec §4.5.
	Snapshots(id PositionID) []SnapshotRecord

	// MarkPrice returns the authoritative mark price, if any.
	MarkPrice(id InstrumentID) (decimal.Decimal, bool)

	// BestBid / BestAsk / LastPrice implement the order-book-driven
	// legs of the pricing policy (spec §4.2).
	BestBid(id InstrumentID) (decimal.Decimal, bool)
	BestAsk(id InstrumentID) (decimal.Decimal, bool)
	LastPrice(id InstrumentID) (decimal.Decimal, bool)

	// MarkRate returns the mark cross-rate from -> to, if any (spec
	// §4.3 use_mark_xrates branch).
	MarkRate(from, to money.Currency) (decimal.Decimal, bool)

	// DirectedRate returns the venue quote-driven cross-rate from -> to
	// for the given side (BID if BUY else ASK per spec §4.3).
	DirectedRate(from, to money.Currency, side OrderSide) (decimal.Decimal, bool)
}

// AccountsManager is the out-of-scope margin-math collaborator (spec
// §1): a black box that recomputes balances/margins given the current
// orders or positions for an account/instrument and returns an updated
// AccountState.
type AccountsManager interface {
	// UpdateOrders recomputes account state from the account's current
	// passive open orders for instrument id (spec §4.6
	// initialize_orders, update_order's post-fill re-invocation).
	UpdateOrders(accountID AccountID, id InstrumentID, openOrders []OpenOrder) (AccountState, error)

	// UpdatePositions recomputes account state (margins) from the
	// account's current open positions for instrument id — MARGIN
	// accounts only (spec §4.6 initialize_positions, update_position).
	UpdatePositions(accountID AccountID, id InstrumentID, openPositions []Position) (AccountState, error)

	// UpdateBalancesOnFill applies a fill's cash/balance effect (spec
	// §4.6 update_order Filled branch).
	UpdateBalancesOnFill(accountID AccountID, fill OrderEvent) (AccountState, error)
}
