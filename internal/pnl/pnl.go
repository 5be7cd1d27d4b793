// Package pnl implements the realized/unrealized PnL engine (spec
// §4.5): per-PositionId snapshot tracking, the four-case snapshot
// combination rule for a netting order-management scheme, and the
// second-pass FX-converted accumulation across open and newly-closed
// positions.
//
// Like the rest of this core, the Engine assumes single-threaded,
// cooperative use (spec §5) — its caches are plain maps, not
// mutex-guarded. Callers that also expose PnL figures from a second
// goroutine (e.g. an admin HTTP surface) must serialize with the
// event handling; internal/adminapi reaches this package only through
// portfolio.Portfolio, whose single mutex guards every query and
// handler.
package pnl

import (
	"errors"
	"fmt"

	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/fx"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/nxtlabs/portfolio-core/internal/pricing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrMissingBetPosition is returned when a Position flagged as a
// betting instrument has no corresponding BetPosition in the cache
// (spec §7 MissingBetPosition).
var ErrMissingBetPosition = errors.New("pnl: missing bet position")

// Cache is the subset of the read-only object cache the PnL engine
// needs. domain.ReadOnlyCache satisfies this interface.
type Cache interface {
	OpenPositions(id domain.InstrumentID) []domain.Position
	Positions(id domain.InstrumentID) []domain.Position
	BetPosition(id domain.PositionID) (*domain.BetPosition, bool)
	SnapshotIDs(id domain.InstrumentID) []domain.PositionID
	Snapshots(id domain.PositionID) []domain.SnapshotRecord
}

// Converter is the subset of internal/fx the PnL engine needs.
type Converter interface {
	Convert(amount money.Money, to money.Currency, side domain.OrderSide, cfg fx.Config) (money.Money, error)
}

// snapshotState is the per-PositionId tracking record described in
// spec §4.5: how many of that position's historical snapshots have
// already been folded into sum_pnl/last_pnl.
type snapshotState struct {
	processedCount int
	sumPnL         money.Money
	lastPnL        money.Money
}

// Engine computes realized and unrealized PnL per instrument, caching
// both until invalidated by a PositionEvent (spec §4.5).
type Engine struct {
	cache     Cache
	fx        Converter
	resolver  pricing.Resolver
	bars      pricing.BarCloseTracker
	pending   *domain.PendingCalcs
	log       zerolog.Logger

	snapshots  map[domain.InstrumentID]map[domain.PositionID]*snapshotState
	realized   map[domain.InstrumentID]money.Money
	unrealized map[domain.InstrumentID]money.Money
}

// NewEngine constructs a PnL engine over the given collaborators.
func NewEngine(cache Cache, converter Converter, resolver pricing.Resolver, bars pricing.BarCloseTracker, pending *domain.PendingCalcs, log zerolog.Logger) *Engine {
	return &Engine{
		cache:      cache,
		fx:         converter,
		resolver:   resolver,
		bars:       bars,
		pending:    pending,
		log:        log.With().Str("component", "pnl").Logger(),
		snapshots:  make(map[domain.InstrumentID]map[domain.PositionID]*snapshotState),
		realized:   make(map[domain.InstrumentID]money.Money),
		unrealized: make(map[domain.InstrumentID]money.Money),
	}
}

// Invalidate drops the cached realized and unrealized PnL for id,
// forcing the next query to recompute (spec §4.5, triggered by the
// Portfolio on every PositionEvent for the instrument).
func (e *Engine) Invalidate(id domain.InstrumentID) {
	delete(e.realized, id)
	delete(e.unrealized, id)
}

// InvalidateUnrealized drops only the cached unrealized PnL for id,
// leaving realized PnL (and snapshot tracking) untouched. Used for
// market-data events (spec §4.6 update_quote_tick/update_bar/
// update_mark_price), which can only move the unrealized figure.
func (e *Engine) InvalidateUnrealized(id domain.InstrumentID) {
	delete(e.unrealized, id)
}

// Reset clears all tracked state (spec §5 reset()).
func (e *Engine) Reset() {
	e.snapshots = make(map[domain.InstrumentID]map[domain.PositionID]*snapshotState)
	e.realized = make(map[domain.InstrumentID]money.Money)
	e.unrealized = make(map[domain.InstrumentID]money.Money)
}

// updateSnapshotTracking folds any newly-observed historical snapshots
// for instrument id into their PositionId's tracking record, triggers a
// full rebuild on a count regression (a purge upstream), and prunes
// tracking for PositionIds no longer present in the current
// snapshot-ID set (spec §4.5).
func (e *Engine) updateSnapshotTracking(id domain.InstrumentID) {
	tracking, ok := e.snapshots[id]
	if !ok {
		tracking = make(map[domain.PositionID]*snapshotState)
		e.snapshots[id] = tracking
	}

	current := e.cache.SnapshotIDs(id)
	currentSet := make(map[domain.PositionID]struct{}, len(current))

	for _, pid := range current {
		currentSet[pid] = struct{}{}

		state, exists := tracking[pid]
		if !exists {
			state = &snapshotState{}
			tracking[pid] = state
		}

		snaps := e.cache.Snapshots(pid)
		if len(snaps) < state.processedCount {
			// Upstream purged history for this position; discard our
			// tracking and replay from scratch.
			state.processedCount = 0
			state.sumPnL = money.Money{}
			state.lastPnL = money.Money{}
		}

		if len(snaps) > state.processedCount {
			for _, s := range snaps[state.processedCount:] {
				if state.sumPnL == (money.Money{}) {
					state.sumPnL = s.RealizedPnL
				} else {
					state.sumPnL = money.MustAdd(state.sumPnL, s.RealizedPnL)
				}
				state.lastPnL = s.RealizedPnL
			}
			state.processedCount = len(snaps)
		}
	}

	for pid := range tracking {
		if _, ok := currentSet[pid]; !ok {
			delete(tracking, pid)
		}
	}
}

// positionRealizedPnL returns a position's current live realized PnL,
// substituting the corresponding BetPosition's accumulated realized PnL
// for betting instruments (spec §4.5 "betting-instrument substitution").
func (e *Engine) positionRealizedPnL(pos domain.Position) (money.Money, error) {
	if pos.IsBettingInstr {
		bp, ok := e.cache.BetPosition(pos.ID)
		if !ok {
			return money.Money{}, fmt.Errorf("%w: position %s", ErrMissingBetPosition, pos.ID)
		}
		return money.New(bp.RealizedPnL, pos.Currency), nil
	}
	if pos.RealizedPnL == nil {
		return money.Zero(pos.Currency), nil
	}
	return *pos.RealizedPnL, nil
}

// RealizedPnL computes (or returns the cached) realized PnL for
// instrument id, expressed in targetCcy, per spec §4.5's snapshot
// combination rule. Returns a wrapped fx.ErrNoRate or
// ErrMissingBetPosition and enrolls id in PendingCalcs when either is
// missing mid-loop; any partial accumulation from that pass is
// discarded.
func (e *Engine) RealizedPnL(id domain.InstrumentID, targetCcy money.Currency, cfg fx.Config) (money.Money, error) {
	if cached, ok := e.realized[id]; ok {
		return cached, nil
	}

	e.updateSnapshotTracking(id)
	tracking := e.snapshots[id]

	current := e.cache.Positions(id)
	byID := make(map[domain.PositionID]domain.Position, len(current))
	for _, p := range current {
		byID[p.ID] = p
	}

	total := money.Zero(targetCcy)

	// First pass: fold in each tracked PositionId's historical
	// contribution per the four-case table.
	for pid, state := range tracking {
		if state.processedCount == 0 {
			continue
		}

		pos, present := byID[pid]
		switch {
		case !present:
			// Case 1: purely historical, no live position left at all.
			converted, err := e.fx.Convert(state.sumPnL, targetCcy, domain.OrderSideBuy, cfg)
			if err != nil {
				e.pending.Add(id)
				return money.Money{}, err
			}
			total = money.MustAdd(total, converted)

		case pos.IsOpen():
			// Case 2: still open. sum_pnl is the full historical
			// contribution; the live (still-accruing) realized PnL is
			// added in the second pass below.
			converted, err := e.fx.Convert(state.sumPnL, targetCcy, pos.EntrySide, cfg)
			if err != nil {
				e.pending.Add(id)
				return money.Money{}, err
			}
			total = money.MustAdd(total, converted)

		default:
			// Closed. Case 3 (live realized PnL already reflected in
			// sum_pnl/last_pnl): net out last_pnl here so the second
			// pass's live-realized addition doesn't double-count it.
			// Case 3a (a fresh close cycle the snapshot history hasn't
			// caught up to yet): sum_pnl alone, the second pass adds
			// the new live realized PnL untouched.
			live, err := e.positionRealizedPnL(pos)
			if err != nil {
				e.log.Warn().Err(err).Stringer("position", pid).Msg("realized pnl: missing bet position")
				e.pending.Add(id)
				return money.Money{}, err
			}

			contribution := state.sumPnL
			if live.Equal(state.lastPnL) {
				var subErr error
				contribution, subErr = money.Sub(state.sumPnL, state.lastPnL)
				if subErr != nil {
					contribution = state.sumPnL
				}
			}
			converted, err := e.fx.Convert(contribution, targetCcy, pos.EntrySide, cfg)
			if err != nil {
				e.pending.Add(id)
				return money.Money{}, err
			}
			total = money.MustAdd(total, converted)
		}
	}

	// Second pass: every live position (open, or closed since the last
	// snapshot walk) contributes its current live realized PnL.
	for _, pos := range current {
		live, err := e.positionRealizedPnL(pos)
		if err != nil {
			e.log.Warn().Err(err).Stringer("position", pos.ID).Msg("realized pnl: missing bet position")
			e.pending.Add(id)
			return money.Money{}, err
		}
		converted, err := e.fx.Convert(live, targetCcy, pos.EntrySide, cfg)
		if err != nil {
			e.pending.Add(id)
			return money.Money{}, err
		}
		total = money.MustAdd(total, converted)
	}

	e.realized[id] = total
	return total, nil
}

// UnrealizedPnL computes (or returns the cached) unrealized PnL for
// instrument id's open positions, expressed in targetCcy, using the
// pricing policy's reference price for each position's side unless an
// explicit price is supplied. An explicit price always bypasses and
// skips the cache (spec §6 "unrealized_pnl(I, price) never touches the
// cache").
func (e *Engine) UnrealizedPnL(id domain.InstrumentID, targetCcy money.Currency, useMarkPrices bool, cfg fx.Config, explicitPrice *decimal.Decimal) (money.Money, error) {
	if explicitPrice == nil {
		if cached, ok := e.unrealized[id]; ok {
			return cached, nil
		}
	}

	open := e.cache.OpenPositions(id)
	if len(open) == 0 {
		result := money.Zero(targetCcy)
		if explicitPrice == nil {
			e.unrealized[id] = result
		}
		return result, nil
	}

	total := money.Zero(targetCcy)
	for _, pos := range open {
		price := decimal.Zero
		if explicitPrice != nil {
			price = *explicitPrice
		} else {
			p, ok := pricing.Resolve(e.resolver, e.bars, id, pos.Side, useMarkPrices)
			if !ok {
				e.pending.Add(id)
				return money.Money{}, fmt.Errorf("%w: %s", pricing.ErrNoPrice, id)
			}
			price = p
		}

		var raw money.Money
		if pos.IsBettingInstr {
			bp, ok := e.cache.BetPosition(pos.ID)
			if !ok {
				e.log.Warn().Stringer("position", pos.ID).Msg("unrealized pnl: missing bet position")
				e.pending.Add(id)
				return money.Money{}, fmt.Errorf("%w: position %s", ErrMissingBetPosition, pos.ID)
			}
			raw = money.New(bp.UnrealizedPnL(price), pos.Currency)
		} else {
			raw = pos.UnrealizedPnL(price)
		}

		converted, err := e.fx.Convert(raw, targetCcy, pos.EntrySide, cfg)
		if err != nil {
			e.pending.Add(id)
			return money.Money{}, err
		}
		total = money.MustAdd(total, converted)
	}

	if explicitPrice == nil {
		e.unrealized[id] = total
	}
	return total, nil
}
