package domain

import (
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/shopspring/decimal"
)

// PositionSide is the directional state of a Position (spec §3).
type PositionSide int

const (
	PositionSideFlat PositionSide = iota
	PositionSideLong
	PositionSideShort
)

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "LONG"
	case PositionSideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// PositionStatus distinguishes a currently-open position from one that
// has closed (and may later reopen under a netting OMS, spec §4.5).
type PositionStatus int

const (
	PositionStatusOpen PositionStatus = iota
	PositionStatusClosed
)

// Position is a read-only snapshot of an order/position-domain object,
// as the Portfolio observes it via the read-only cache (spec §3). The
// Portfolio never mutates a Position; it is owned by the upstream
// position-management system.
type Position struct {
	ID             PositionID
	AccountID      AccountID
	InstrumentID   InstrumentID
	Status         PositionStatus
	Side           PositionSide
	EntrySide      OrderSide
	Quantity       decimal.Decimal // signed
	UnitCost       decimal.Decimal
	Currency       money.Currency // cost/settlement currency, before any FX conversion
	RealizedPnL    *money.Money   // nil while open and not yet realized
	IsBettingInstr bool
}

// SignedQuantity returns the position's quantity signed by side: a
// positive quantity for LONG, negative for SHORT, zero for FLAT. The
// underlying Quantity field is already signed by the upstream system in
// most implementations, but callers in this core always go through this
// accessor so the net-position ledger's invariant (spec §8 property 1)
// doesn't depend on that upstream convention.
func (p Position) SignedQuantity() decimal.Decimal {
	switch p.Side {
	case PositionSideLong:
		return p.Quantity.Abs()
	case PositionSideShort:
		return p.Quantity.Abs().Neg()
	default:
		return decimal.Zero
	}
}

// IsOpen reports whether the position is currently open.
func (p Position) IsOpen() bool { return p.Status == PositionStatusOpen }

// UnrealizedPnL computes unrealized PnL at the given reference price,
// in the position's own Currency (the caller converts to a target
// currency via internal/fx). side-agnostic: (price - unitCost) *
// signedQuantity is correct for both LONG (positive quantity) and SHORT
// (negative quantity).
func (p Position) UnrealizedPnL(price decimal.Decimal) money.Money {
	pnl := price.Sub(p.UnitCost).Mul(p.SignedQuantity())
	return money.New(pnl, p.Currency)
}

// Bet is a single fill against a BetPosition (spec §4.6: "append a
// Bet(price, stake, side)").
type Bet struct {
	Price decimal.Decimal
	Stake decimal.Decimal
	Side  OrderSide
}

// BetPosition aggregates fills for a wagering-style instrument (spec
// §3). Appended to by fills; exposure and unrealized PnL are derived
// from the accumulated bets rather than a single quantity/cost pair.
type BetPosition struct {
	PositionID  PositionID
	Bets        []Bet
	RealizedPnL decimal.Decimal
}

// AddBet appends a fill to the position's bet history.
func (b *BetPosition) AddBet(bet Bet) {
	b.Bets = append(b.Bets, bet)
}

// Exposure returns the position's net stake exposure: BUY bets add
// stake, SELL bets subtract it (mirroring a netting long/short of
// wagered stake).
func (b *BetPosition) Exposure() decimal.Decimal {
	exposure := decimal.Zero
	for _, bet := range b.Bets {
		if bet.Side == OrderSideBuy {
			exposure = exposure.Add(bet.Stake)
		} else {
			exposure = exposure.Sub(bet.Stake)
		}
	}
	return exposure
}

// UnrealizedPnL values the aggregated bet exposure against a current
// price: for each bet, (price - entryPrice) * signed stake, summed.
func (b *BetPosition) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, bet := range b.Bets {
		signedStake := bet.Stake
		if bet.Side == OrderSideSell {
			signedStake = signedStake.Neg()
		}
		total = total.Add(price.Sub(bet.Price).Mul(signedStake))
	}
	return total
}

// BetPositions is the Portfolio's own store of BetPositions (spec §3:
// "Appended to by fills"). Unlike Position, a BetPosition has no
// upstream writer of its own in the read-only cache — the Portfolio is
// the one collaborator that records bets as OrderFilled events arrive,
// so this state lives alongside PendingCalcs rather than behind
// ReadOnlyCache.
type BetPositions struct {
	byPosition map[PositionID]*BetPosition
}

// NewBetPositions returns an empty BetPositions store.
func NewBetPositions() *BetPositions {
	return &BetPositions{byPosition: make(map[PositionID]*BetPosition)}
}

// GetOrCreate returns the BetPosition tracked for id, creating an empty
// one on first reference.
func (s *BetPositions) GetOrCreate(id PositionID) *BetPosition {
	bp, ok := s.byPosition[id]
	if !ok {
		bp = &BetPosition{PositionID: id}
		s.byPosition[id] = bp
	}
	return bp
}

// Get returns the BetPosition tracked for id, if any bet has been
// recorded against it yet.
func (s *BetPositions) Get(id PositionID) (*BetPosition, bool) {
	bp, ok := s.byPosition[id]
	return bp, ok
}

// Reset clears every tracked BetPosition (spec §5 reset()).
func (s *BetPositions) Reset() {
	s.byPosition = make(map[PositionID]*BetPosition)
}
