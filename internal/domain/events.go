package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventKind enumerates the order-event subtypes the Portfolio's
// order handler recognizes (spec §6). Kinds outside the set the handler
// understands are ignored silently (spec §7 InvalidEvent).
type OrderEventKind int

const (
	OrderInitialized OrderEventKind = iota
	OrderSubmitted
	OrderRejected
	OrderAccepted
	OrderCanceled
	OrderExpired
	OrderUpdated
	OrderFilled
	OrderPendingCancel
	OrderPendingUpdate
	OrderTriggered
	OrderCancelRejected
	OrderUpdateRejected
	OrderDenied
	OrderInvalid
)

// OrderKind distinguishes passive (resting, margin-posting) orders from
// others, used when filtering "passive-only" orders for
// update_orders/accounts-manager calls (spec §4.6, GLOSSARY).
type OrderKind int

const (
	OrderKindMarket OrderKind = iota
	OrderKindLimit
	OrderKindStopLimit
	OrderKindStopMarket
)

// IsPassive reports whether this order kind posts margin while resting
// (GLOSSARY "Passive order").
func (k OrderKind) IsPassive() bool {
	return k == OrderKindLimit || k == OrderKindStopLimit || k == OrderKindStopMarket
}

// OrderEvent is a single event on an order (spec §6 events.order.*).
type OrderEvent struct {
	Kind         OrderEventKind
	OrderKind    OrderKind
	AccountID    AccountID // empty if the order carries no account
	InstrumentID InstrumentID
	Side         OrderSide
	FillPrice    decimal.Decimal
	FillQty      decimal.Decimal
	Timestamp    time.Time
}

// PositionEventKind enumerates position-event subtypes (spec §6
// events.position.*).
type PositionEventKind int

const (
	PositionOpened PositionEventKind = iota
	PositionChanged
	PositionClosed
)

// PositionEvent signals a change to a position the Portfolio must
// react to by rebuilding the net-position ledger and invalidating PnL
// caches for the affected instrument (spec §4.4, §4.5).
type PositionEvent struct {
	Kind         PositionEventKind
	AccountID    AccountID
	InstrumentID InstrumentID
	PositionID   PositionID
	Timestamp    time.Time
}

// QuoteTick is a best bid/ask update (spec §6 data.quotes.*).
type QuoteTick struct {
	InstrumentID InstrumentID
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	Timestamp    time.Time
}

// MarkPrice is an authoritative external reference price (spec §6
// data.mark_prices.*, GLOSSARY).
type MarkPrice struct {
	InstrumentID InstrumentID
	Price        decimal.Decimal
	Timestamp    time.Time
}

// Bar is an OHLC bar; only Close is used by the pricing policy's
// bar-close fallback (spec §4.2 step 4, §6 data.bars.*EXTERNAL).
type Bar struct {
	InstrumentID InstrumentID
	Close        decimal.Decimal
	Timestamp    time.Time
}
