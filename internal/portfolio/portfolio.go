// Package portfolio wires every other package into the Portfolio state
// machine (spec §4.6): the single component that subscribes to the bus,
// drives initialization and re-drive of pending instruments, and serves
// the synchronous query surface (spec §6).
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nxtlabs/portfolio-core/internal/bus"
	"github.com/nxtlabs/portfolio-core/internal/config"
	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/fx"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/nxtlabs/portfolio-core/internal/netposition"
	"github.com/nxtlabs/portfolio-core/internal/pnl"
	"github.com/nxtlabs/portfolio-core/internal/pricing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Sentinel errors rounding out spec §7's error taxonomy that aren't
// already owned by a lower package (fx.ErrNoRate, pricing.ErrNoPrice,
// pnl.ErrMissingBetPosition).
var (
	ErrMissingAccount    = errors.New("portfolio: missing account")
	ErrMissingInstrument = errors.New("portfolio: missing instrument")
)

// Portfolio is the accounting core's top-level state machine. Unlike
// pnl.Engine, Portfolio does carry its own lock: spec §5
// describes a single-threaded, cooperative dispatch loop, but SPEC_FULL
// §4.8 adds a read-only admin HTTP surface that calls into Portfolio's
// query methods from request-handling goroutines, concurrently with the
// bus dispatch loop that drives the event handlers below. A single
// coarse sync.Mutex around every exported method is the simplest
// correct serialization point — spec §9's own design notes call out
// exactly this shape for "multi-threaded front-doors": "serialize all
// Portfolio handler invocations with a single lock" rather than push
// fine-grained locking into pnl.Engine or the pricing resolver.
type Portfolio struct {
	mu sync.Mutex

	cache       domain.ReadOnlyCache
	accountsMgr domain.AccountsManager
	bus         *bus.Bus
	cfg         *config.Config
	log         zerolog.Logger

	ledger       *netposition.Ledger
	pnlEngine    *pnl.Engine
	pending      *domain.PendingCalcs
	bars         *pricing.BarCloseStore
	fxResolver   *fx.Resolver
	betPositions *domain.BetPositions

	subs []bus.Subscription

	initialized    bool
	lastAccountLog map[domain.AccountID]time.Time
}

// pnlCache feeds the PnL engine's Cache interface: everything but
// BetPosition reads straight through the read-only object cache, while
// BetPosition is served from the Portfolio's own BetPositions store —
// the upstream cache has no write path for it (domain.BetPositions doc
// comment).
type pnlCache struct {
	domain.ReadOnlyCache
	bets *domain.BetPositions
}

func (c pnlCache) BetPosition(id domain.PositionID) (*domain.BetPosition, bool) {
	return c.bets.Get(id)
}

// New constructs a Portfolio over its collaborators and subscribes its
// handlers to b. The returned Portfolio starts Uninitialized (spec §5):
// callers are expected to drive InitializeOrders/InitializePositions
// per account before relying on the query surface.
func New(cache domain.ReadOnlyCache, accountsMgr domain.AccountsManager, b *bus.Bus, cfg *config.Config, log zerolog.Logger) *Portfolio {
	log = log.With().Str("component", "portfolio").Logger()
	pending := domain.NewPendingCalcs()
	bars := pricing.NewBarCloseStore()
	fxResolver := fx.New(cache, log)
	betPositions := domain.NewBetPositions()

	p := &Portfolio{
		cache:          cache,
		accountsMgr:    accountsMgr,
		bus:            b,
		cfg:            cfg,
		log:            log,
		ledger:         netposition.New(log),
		pnlEngine:      pnl.NewEngine(pnlCache{ReadOnlyCache: cache, bets: betPositions}, fxResolver, cache, bars, pending, log),
		pending:        pending,
		bars:           bars,
		fxResolver:     fxResolver,
		betPositions:   betPositions,
		lastAccountLog: make(map[domain.AccountID]time.Time),
	}

	p.subs = append(p.subs,
		b.Subscribe(bus.TopicOrders, func(payload any) {
			if ev, ok := payload.(domain.OrderEvent); ok {
				p.HandleOrderEvent(ev)
			}
		}),
		b.Subscribe(bus.TopicPositions, func(payload any) {
			if ev, ok := payload.(domain.PositionEvent); ok {
				p.HandlePositionEvent(ev)
			}
		}),
		b.Subscribe(bus.TopicAccounts, func(payload any) {
			if ev, ok := payload.(domain.AccountState); ok {
				p.HandleAccountState(ev)
			}
		}),
		b.Subscribe(bus.TopicQuotes, func(payload any) {
			if ev, ok := payload.(domain.QuoteTick); ok {
				p.HandleQuoteTick(ev)
			}
		}),
		b.Subscribe(bus.TopicMarkPrices, func(payload any) {
			if ev, ok := payload.(domain.MarkPrice); ok {
				p.HandleMarkPrice(ev)
			}
		}),
	)
	if cfg.BarUpdates {
		p.subs = append(p.subs, b.Subscribe(bus.TopicBars, func(payload any) {
			if ev, ok := payload.(domain.Bar); ok {
				p.HandleBar(ev)
			}
		}))
	}

	return p
}

// Close unsubscribes every handler this Portfolio registered.
func (p *Portfolio) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		p.bus.Unsubscribe(sub)
	}
	p.subs = nil
}

// --- account/currency helpers -------------------------------------------------

func (p *Portfolio) accountByID(id domain.AccountID) (*domain.Account, bool) {
	return p.cache.Account(string(id))
}

// fxConfigFor builds the fx.Config to use for a query scoped to acc:
// base-currency conversion only makes sense when the account actually
// has one configured.
func (p *Portfolio) fxConfigFor(acc *domain.Account) fx.Config {
	return fx.Config{
		ConvertToAccountBaseCurrency: p.cfg.ConvertToAccountBaseCurrency && !acc.BaseCurrency.IsNone(),
		UseMarkXRates:                p.cfg.UseMarkXRates,
	}
}

// targetCurrencyForAccount picks the currency a venue-scoped figure for
// instrument id should accumulate in: acc's base currency when
// conversion is enabled and configured, otherwise id's own natural
// currency (so aggregation across several same-currency instruments
// still nets correctly without a spurious FX step).
func (p *Portfolio) targetCurrencyForAccount(acc *domain.Account, id domain.InstrumentID) money.Currency {
	if p.cfg.ConvertToAccountBaseCurrency && !acc.BaseCurrency.IsNone() {
		return acc.BaseCurrency
	}
	return p.instrumentNaturalCurrency(id, acc.BaseCurrency)
}

// instrumentNaturalCurrency returns id's own cost/settlement currency,
// taken from any known position on it, falling back to fallback when
// nothing is known yet (e.g. no positions have ever been opened).
//
// Per-instrument queries in spec §6 (realized_pnl(instrument_id),
// unrealized_pnl(instrument_id), total_pnl, net_exposure) take no
// venue/account parameter, so there is no single account whose base
// currency could anchor an FX conversion. This core resolves that by
// computing those queries in the instrument's own natural currency with
// FX effectively disabled; only the venue-scoped aggregate queries
// (realized_pnls(venue) etc.) convert into a specific account's base
// currency using the real configured FX settings.
func (p *Portfolio) instrumentNaturalCurrency(id domain.InstrumentID, fallback money.Currency) money.Currency {
	if !id.IsZero() {
		if positions := p.cache.Positions(id); len(positions) > 0 {
			return positions[0].Currency
		}
	}
	return fallback
}

func noConversion() fx.Config { return fx.Config{} }

// --- initialization -------------------------------------------------------

// InitializeOrders drives spec §4.6's initialize_orders: for every
// instrument with a resting order on accountID, recompute account state
// from the account's current passive open orders. Failures for one
// instrument enroll it in PendingCalcs and do not block the others;
// initialization only completes (see Initialized) once PendingCalcs is
// empty.
func (p *Portfolio) InitializeOrders(accountID domain.AccountID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accountByID(accountID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingAccount, accountID)
	}

	for _, id := range distinctOrderInstruments(p.cache.OpenOrdersForAccount(accountID)) {
		if !p.cache.InstrumentExists(id) {
			p.log.Warn().Stringer("instrument", id).Msg("initialize_orders: unknown instrument")
			continue
		}
		p.updateOrdersFor(acc, id)
	}

	p.refreshInitializedLocked()
	return nil
}

// InitializePositions drives spec §4.6's initialize_positions: for
// every instrument with an open position on accountID, rebuild the
// net-position ledger entry, prime the realized/unrealized PnL caches,
// and (for MARGIN accounts) recompute margins from open positions.
func (p *Portfolio) InitializePositions(accountID domain.AccountID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accountByID(accountID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingAccount, accountID)
	}

	for _, id := range distinctPositionInstruments(p.cache.OpenPositionsForAccount(accountID)) {
		if !p.cache.InstrumentExists(id) {
			p.log.Warn().Stringer("instrument", id).Msg("initialize_positions: unknown instrument")
			continue
		}

		p.pnlEngine.Invalidate(id)
		p.ledger.Rebuild(id, p.cache.OpenPositions(id))

		target := p.targetCurrencyForAccount(acc, id)
		if _, err := p.pnlEngine.RealizedPnL(id, target, p.fxConfigFor(acc)); err != nil {
			p.log.Warn().Err(err).Stringer("instrument", id).Msg("initialize_positions: realized pnl pending")
			continue
		}
		if _, err := p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, p.fxConfigFor(acc), nil); err != nil {
			p.log.Warn().Err(err).Stringer("instrument", id).Msg("initialize_positions: unrealized pnl pending")
			continue
		}

		if acc.Type == domain.AccountTypeMargin && acc.CalculateAccountState {
			p.updatePositionsFor(acc, id)
		}
	}

	p.refreshInitializedLocked()
	return nil
}

func (p *Portfolio) refreshInitializedLocked() {
	if p.pending.IsEmpty() {
		p.initialized = true
	}
}

// --- order-manager-triggered recomputation --------------------------------

// updateOrdersFor recomputes acc's state from its current passive open
// orders on instrument id, applying and republishing on success. On
// failure the instrument is enrolled in PendingCalcs (spec §4.6) and
// false is returned so callers can keep processing other instruments.
func (p *Portfolio) updateOrdersFor(acc *domain.Account, id domain.InstrumentID) bool {
	orders := passiveOrders(p.cache.OpenOrdersForAccount(acc.ID), id)
	state, err := p.accountsMgr.UpdateOrders(acc.ID, id, orders)
	if err != nil {
		p.log.Warn().Err(err).Stringer("instrument", id).Str("account", string(acc.ID)).Msg("update_orders failed")
		p.pending.Add(id)
		return false
	}
	p.applyAndPublish(acc, state)
	return true
}

// updatePositionsFor recomputes acc's margins from its current open
// positions on instrument id (MARGIN accounts only).
func (p *Portfolio) updatePositionsFor(acc *domain.Account, id domain.InstrumentID) bool {
	open := p.cache.OpenPositions(id)
	state, err := p.accountsMgr.UpdatePositions(acc.ID, id, open)
	if err != nil {
		p.log.Warn().Err(err).Stringer("instrument", id).Str("account", string(acc.ID)).Msg("update_positions failed")
		p.pending.Add(id)
		return false
	}
	p.applyAndPublish(acc, state)
	return true
}

func (p *Portfolio) applyAndPublish(acc *domain.Account, state domain.AccountState) {
	acc.Apply(state)
	p.cache.PutAccount(acc)
	p.maybeLogAccountState(acc)
	p.bus.Publish(bus.AccountTopic(string(acc.ID)), acc.State)
}

func (p *Portfolio) maybeLogAccountState(acc *domain.Account) {
	now := time.Now()
	last, seen := p.lastAccountLog[acc.ID]
	if seen && now.Sub(last) < p.cfg.MinAccountStateLoggingInterval {
		return
	}
	p.lastAccountLog[acc.ID] = now
	p.log.Info().
		Str("account", string(acc.ID)).
		Str("event_id", acc.State.EventID).
		Msg("account state updated")
}

// --- event handlers (spec §4.6) -------------------------------------------

// HandleOrderEvent implements update_order.
func (p *Portfolio) HandleOrderEvent(ev domain.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.AccountID == "" {
		return
	}
	acc, ok := p.accountByID(ev.AccountID)
	if !ok {
		p.log.Warn().Str("account", string(ev.AccountID)).Msg("update_order: missing account")
		return
	}
	if !acc.CalculateAccountState {
		return
	}

	switch ev.Kind {
	case domain.OrderAccepted, domain.OrderCanceled, domain.OrderExpired, domain.OrderUpdated, domain.OrderFilled:
		// proceed
	case domain.OrderRejected:
		if ev.OrderKind != domain.OrderKindStopLimit {
			return
		}
	default:
		return // spec §7 InvalidEvent: ignored silently
	}

	if ev.Kind == domain.OrderFilled {
		state, err := p.accountsMgr.UpdateBalancesOnFill(acc.ID, ev)
		if err != nil {
			p.log.Warn().Err(err).Str("account", string(acc.ID)).Msg("update_balances_on_fill failed")
		} else {
			p.applyAndPublish(acc, state)
		}

		if pos, ok := p.bettingPositionFor(ev); ok {
			p.betPositions.GetOrCreate(pos.ID).AddBet(domain.Bet{
				Price: ev.FillPrice,
				Stake: ev.FillQty,
				Side:  ev.Side,
			})
		}

		// A fill always changes live realized PnL (and, for betting
		// instruments, the BetPosition the fill was just recorded
		// against); invalidate so the next query recomputes from the
		// cache's now-current state.
		p.pnlEngine.Invalidate(ev.InstrumentID)
	}

	p.updateOrdersFor(acc, ev.InstrumentID)
}

// bettingPositionFor resolves the open position a fill on ev's
// account/instrument was recorded against, when that position is
// flagged as a betting instrument (spec §4.6 Filled branch, "for
// betting instruments, create/lookup the BetPosition, append a Bet").
func (p *Portfolio) bettingPositionFor(ev domain.OrderEvent) (domain.Position, bool) {
	for _, pos := range p.cache.OpenPositions(ev.InstrumentID) {
		if pos.AccountID == ev.AccountID && pos.IsBettingInstr {
			return pos, true
		}
	}
	return domain.Position{}, false
}

// HandlePositionEvent implements update_position.
func (p *Portfolio) HandlePositionEvent(ev domain.PositionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ledger.Rebuild(ev.InstrumentID, p.cache.OpenPositions(ev.InstrumentID))
	p.pnlEngine.Invalidate(ev.InstrumentID)

	if ev.AccountID == "" {
		return
	}
	acc, ok := p.accountByID(ev.AccountID)
	if !ok {
		p.log.Warn().Str("account", string(ev.AccountID)).Msg("update_position: missing account")
		return
	}
	if acc.Type == domain.AccountTypeMargin && acc.CalculateAccountState {
		p.updatePositionsFor(acc, ev.InstrumentID)
	}
}

// HandleAccountState implements update_account. A venue maps to exactly
// one account in this core (domain.Account doc comment), so the
// incoming event's AccountID doubles as the venue key the cache is
// keyed by.
func (p *Portfolio) HandleAccountState(ev domain.AccountState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	venue := string(ev.AccountID)
	acc, ok := p.cache.Account(venue)
	if !ok {
		acc = &domain.Account{ID: ev.AccountID, Venue: venue, CalculateAccountState: true}
	}
	p.applyAndPublish(acc, ev)
}

// HandleQuoteTick implements update_quote_tick.
func (p *Portfolio) HandleQuoteTick(tick domain.QuoteTick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMarketData(tick.InstrumentID)
}

// HandleMarkPrice implements update_mark_price.
func (p *Portfolio) HandleMarkPrice(mp domain.MarkPrice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMarketData(mp.InstrumentID)
}

// HandleBar implements update_bar, gated at construction time by
// cfg.BarUpdates.
func (p *Portfolio) HandleBar(bar domain.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars.Update(bar.InstrumentID, bar.Close)
	p.onMarketData(bar.InstrumentID)
}

// onMarketData is the shared tail of update_quote_tick/update_bar/
// update_mark_price: invalidate the instrument's unrealized-PnL cache,
// then — if the Portfolio hasn't finished initializing and this
// instrument is one of the outstanding PendingCalcs — attempt to
// advance it by re-driving update_orders/update_positions (spec §4.6).
func (p *Portfolio) onMarketData(id domain.InstrumentID) {
	p.pnlEngine.InvalidateUnrealized(id)
	if p.initialized || !p.pending.Contains(id) {
		return
	}
	p.redrive(id)
}

// redrive retries the full per-instrument convergence procedure for a
// pending instrument: re-run update_orders and (for MARGIN accounts)
// update_positions against every account that owns an open position on
// id, then confirm unrealized PnL now resolves. id is only removed from
// PendingCalcs once every step for every owning account succeeds.
func (p *Portfolio) redrive(id domain.InstrumentID) {
	positions := p.cache.OpenPositions(id)
	accountIDs := distinctPositionAccounts(positions)

	if len(accountIDs) == 0 {
		// No open positions left to re-drive against; the instrument may
		// simply need a fresh price to clear.
		target := p.instrumentNaturalCurrency(id, money.None)
		if _, err := p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, noConversion(), nil); err == nil {
			p.pending.Remove(id)
		}
		p.refreshInitializedLocked()
		return
	}

	allOK := true
	for _, accID := range accountIDs {
		acc, ok := p.accountByID(accID)
		if !ok {
			allOK = false
			continue
		}
		if !p.updateOrdersFor(acc, id) {
			allOK = false
			continue
		}
		if acc.Type == domain.AccountTypeMargin && acc.CalculateAccountState {
			if !p.updatePositionsFor(acc, id) {
				allOK = false
				continue
			}
		}
		target := p.targetCurrencyForAccount(acc, id)
		if _, err := p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, p.fxConfigFor(acc), nil); err != nil {
			p.pending.Add(id)
			allOK = false
		}
	}
	if allOK {
		p.pending.Remove(id)
	}
	p.refreshInitializedLocked()
}

// --- query surface (spec §6) -----------------------------------------------

// Initialized reports whether the Portfolio has converged: every
// instrument has cleared PendingCalcs since the last InitializeOrders/
// InitializePositions pass.
func (p *Portfolio) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// PendingCount reports the number of instruments still awaiting
// convergence (used by internal/adminapi's /healthz).
func (p *Portfolio) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Len()
}

// Account returns the account registered for venue.
func (p *Portfolio) Account(venue string) (*domain.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Account(venue)
}

// BalancesLocked returns venue's account's last-known locked balances.
func (p *Portfolio) BalancesLocked(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.cache.Account(venue)
	if !ok {
		return nil, false
	}
	return acc.State.BalancesLocked, true
}

// MarginsInit returns venue's account's last-known initial margins.
func (p *Portfolio) MarginsInit(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.cache.Account(venue)
	if !ok {
		return nil, false
	}
	return acc.State.MarginsInit, true
}

// MarginsMaint returns venue's account's last-known maintenance margins.
func (p *Portfolio) MarginsMaint(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.cache.Account(venue)
	if !ok {
		return nil, false
	}
	return acc.State.MarginsMaint, true
}

// RealizedPnL returns instrument id's realized PnL in its own natural
// currency (no venue/account scope to derive a base currency from —
// see instrumentNaturalCurrency).
func (p *Portfolio) RealizedPnL(id domain.InstrumentID) (money.Money, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cache.InstrumentExists(id) {
		return money.Money{}, fmt.Errorf("%w: %s", ErrMissingInstrument, id)
	}
	target := p.instrumentNaturalCurrency(id, money.None)
	return p.pnlEngine.RealizedPnL(id, target, noConversion())
}

// UnrealizedPnL returns instrument id's unrealized PnL. price, if
// non-nil, bypasses both the pricing policy and the engine's cache
// (spec §6).
func (p *Portfolio) UnrealizedPnL(id domain.InstrumentID, price *decimal.Decimal) (money.Money, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cache.InstrumentExists(id) {
		return money.Money{}, fmt.Errorf("%w: %s", ErrMissingInstrument, id)
	}
	target := p.instrumentNaturalCurrency(id, money.None)
	return p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, noConversion(), price)
}

// TotalPnL returns realized + unrealized PnL for instrument id, both
// computed in the instrument's natural currency so the sum never needs
// a cross-currency add.
func (p *Portfolio) TotalPnL(id domain.InstrumentID, price *decimal.Decimal) (money.Money, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cache.InstrumentExists(id) {
		return money.Money{}, fmt.Errorf("%w: %s", ErrMissingInstrument, id)
	}
	target := p.instrumentNaturalCurrency(id, money.None)
	realized, err := p.pnlEngine.RealizedPnL(id, target, noConversion())
	if err != nil {
		return money.Money{}, err
	}
	unrealized, err := p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, noConversion(), price)
	if err != nil {
		return money.Money{}, err
	}
	return money.MustAdd(realized, unrealized), nil
}

// bettingExposure reports id's aggregated stake exposure and natural
// currency when id is a betting instrument: the sum of
// BetPosition.Exposure() across every currently-open position on id
// (spec §8 seed scenario 4, "BetPosition... exposure... drive[s]
// net_exposure"). ok is false for a non-betting instrument, in which
// case callers fall through to the quantity*price path.
func (p *Portfolio) bettingExposure(id domain.InstrumentID) (decimal.Decimal, money.Currency, bool) {
	open := p.cache.OpenPositions(id)

	isBetting := false
	for _, pos := range open {
		if pos.IsBettingInstr {
			isBetting = true
			break
		}
	}
	if !isBetting {
		return decimal.Zero, money.None, false
	}

	total := decimal.Zero
	ccy := money.None
	for _, pos := range open {
		if !pos.IsBettingInstr {
			continue
		}
		if ccy.IsNone() {
			ccy = pos.Currency
		}
		if bp, ok := p.betPositions.Get(pos.ID); ok {
			total = total.Add(bp.Exposure())
		}
	}
	return total, ccy, true
}

// NetExposure returns instrument id's signed notional exposure: net
// position quantity times a reference price (explicit, or resolved by
// the pricing policy for the net position's implied side).
func (p *Portfolio) NetExposure(id domain.InstrumentID, price *decimal.Decimal) (money.Money, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cache.InstrumentExists(id) {
		return money.Money{}, fmt.Errorf("%w: %s", ErrMissingInstrument, id)
	}

	if exposure, ccy, ok := p.bettingExposure(id); ok {
		return money.New(exposure, ccy), nil
	}

	net := p.ledger.Net(id)
	target := p.instrumentNaturalCurrency(id, money.None)

	var ref decimal.Decimal
	if price != nil {
		ref = *price
	} else {
		side := domain.PositionSideFlat
		switch {
		case net.Sign() > 0:
			side = domain.PositionSideLong
		case net.Sign() < 0:
			side = domain.PositionSideShort
		}
		resolved, ok := pricing.Resolve(p.cache, p.bars, id, side, p.cfg.UseMarkPrices)
		if !ok {
			p.pending.Add(id)
			return money.Money{}, fmt.Errorf("%w: %s", pricing.ErrNoPrice, id)
		}
		ref = resolved
	}

	return money.New(net.Mul(ref), target), nil
}

// NetPosition returns instrument id's net signed quantity.
func (p *Portfolio) NetPosition(id domain.InstrumentID) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.Net(id)
}

// IsNetLong reports whether instrument id's net position is positive.
func (p *Portfolio) IsNetLong(id domain.InstrumentID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.IsNetLong(id)
}

// IsNetShort reports whether instrument id's net position is negative.
func (p *Portfolio) IsNetShort(id domain.InstrumentID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.IsNetShort(id)
}

// IsFlat reports whether instrument id's net position is zero.
func (p *Portfolio) IsFlat(id domain.InstrumentID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.IsFlat(id)
}

// IsCompletelyFlat reports whether every tracked instrument is flat
// (spec §8 property 2).
func (p *Portfolio) IsCompletelyFlat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.IsCompletelyFlat()
}

// venueAggregate runs fn for every instrument with an open position on
// venue's account, aggregating the per-currency results. Any single
// instrument failing (missing price or exchange rate) aborts the whole
// aggregate and returns (nil, false): a venue-scoped figure with a gap
// in it is worse than none at all (spec §7's aggregate-query guidance).
func (p *Portfolio) venueAggregate(venue string, fn func(acc *domain.Account, id domain.InstrumentID) (money.Money, error)) (map[money.Currency]money.Money, bool) {
	acc, ok := p.cache.Account(venue)
	if !ok {
		return nil, false
	}

	totals := make(map[money.Currency]money.Money)
	for _, id := range distinctPositionInstruments(p.cache.OpenPositionsForAccount(acc.ID)) {
		amount, err := fn(acc, id)
		if err != nil {
			return nil, false
		}
		if cur, exists := totals[amount.Currency()]; exists {
			totals[amount.Currency()] = money.MustAdd(cur, amount)
		} else {
			totals[amount.Currency()] = amount
		}
	}
	return totals, true
}

// RealizedPnLs aggregates realized PnL across every instrument with an
// open position on venue's account, converted to the account's base
// currency per the configured FX policy.
func (p *Portfolio) RealizedPnLs(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.venueAggregate(venue, func(acc *domain.Account, id domain.InstrumentID) (money.Money, error) {
		return p.pnlEngine.RealizedPnL(id, p.targetCurrencyForAccount(acc, id), p.fxConfigFor(acc))
	})
}

// UnrealizedPnLs aggregates unrealized PnL across venue's open
// instruments, converted to the account's base currency.
func (p *Portfolio) UnrealizedPnLs(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.venueAggregate(venue, func(acc *domain.Account, id domain.InstrumentID) (money.Money, error) {
		return p.pnlEngine.UnrealizedPnL(id, p.targetCurrencyForAccount(acc, id), p.cfg.UseMarkPrices, p.fxConfigFor(acc), nil)
	})
}

// TotalPnLs aggregates realized + unrealized PnL across venue's open
// instruments (spec §8 property 3: "total_pnl == realized + unrealized
// for every instrument").
func (p *Portfolio) TotalPnLs(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.venueAggregate(venue, func(acc *domain.Account, id domain.InstrumentID) (money.Money, error) {
		target := p.targetCurrencyForAccount(acc, id)
		cfg := p.fxConfigFor(acc)
		realized, err := p.pnlEngine.RealizedPnL(id, target, cfg)
		if err != nil {
			return money.Money{}, err
		}
		unrealized, err := p.pnlEngine.UnrealizedPnL(id, target, p.cfg.UseMarkPrices, cfg, nil)
		if err != nil {
			return money.Money{}, err
		}
		return money.MustAdd(realized, unrealized), nil
	})
}

// NetExposures aggregates notional exposure across venue's open
// instruments, converted to the account's base currency.
func (p *Portfolio) NetExposures(venue string) (map[money.Currency]money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.venueAggregate(venue, func(acc *domain.Account, id domain.InstrumentID) (money.Money, error) {
		if exposure, ccy, ok := p.bettingExposure(id); ok {
			orderSide := domain.OrderSideBuy
			if exposure.Sign() < 0 {
				orderSide = domain.OrderSideSell
			}
			raw := money.New(exposure, ccy)
			return p.fxResolver.Convert(raw, p.targetCurrencyForAccount(acc, id), orderSide, p.fxConfigFor(acc))
		}

		net := p.ledger.Net(id)
		side := domain.PositionSideFlat
		orderSide := domain.OrderSideBuy
		switch {
		case net.Sign() > 0:
			side = domain.PositionSideLong
		case net.Sign() < 0:
			side = domain.PositionSideShort
			orderSide = domain.OrderSideSell
		}
		ref, ok := pricing.Resolve(p.cache, p.bars, id, side, p.cfg.UseMarkPrices)
		if !ok {
			p.pending.Add(id)
			return money.Money{}, fmt.Errorf("%w: %s", pricing.ErrNoPrice, id)
		}
		natural := p.instrumentNaturalCurrency(id, acc.BaseCurrency)
		raw := money.New(net.Mul(ref), natural)
		return p.fxResolver.Convert(raw, p.targetCurrencyForAccount(acc, id), orderSide, p.fxConfigFor(acc))
	})
}

// Reset clears all internally-tracked state — net positions, PnL
// caches, pending calcs, bar-close tracking and the Initialized flag —
// without touching the read-only cache or the accounts-manager (spec §5
// reset()).
func (p *Portfolio) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger.Reset()
	p.pnlEngine.Reset()
	p.pending.Reset()
	p.bars.Reset()
	p.betPositions.Reset()
	p.initialized = false
	p.lastAccountLog = make(map[domain.AccountID]time.Time)
}

// Dispose tears down the Portfolio: unsubscribes from the bus and
// clears internal state (spec §5 dispose()). The Portfolio must not be
// used afterward.
func (p *Portfolio) Dispose() {
	p.Close()
	p.Reset()
}

// --- small pure helpers -----------------------------------------------------

func passiveOrders(orders []domain.OpenOrder, id domain.InstrumentID) []domain.OpenOrder {
	var out []domain.OpenOrder
	for _, o := range orders {
		if o.InstrumentID == id && o.Kind.IsPassive() {
			out = append(out, o)
		}
	}
	return out
}

func distinctOrderInstruments(orders []domain.OpenOrder) []domain.InstrumentID {
	seen := make(map[domain.InstrumentID]struct{})
	var ids []domain.InstrumentID
	for _, o := range orders {
		if _, ok := seen[o.InstrumentID]; !ok {
			seen[o.InstrumentID] = struct{}{}
			ids = append(ids, o.InstrumentID)
		}
	}
	return ids
}

func distinctPositionInstruments(positions []domain.Position) []domain.InstrumentID {
	seen := make(map[domain.InstrumentID]struct{})
	var ids []domain.InstrumentID
	for _, p := range positions {
		if _, ok := seen[p.InstrumentID]; !ok {
			seen[p.InstrumentID] = struct{}{}
			ids = append(ids, p.InstrumentID)
		}
	}
	return ids
}

func distinctPositionAccounts(positions []domain.Position) []domain.AccountID {
	seen := make(map[domain.AccountID]struct{})
	var ids []domain.AccountID
	for _, p := range positions {
		if p.AccountID == "" {
			continue
		}
		if _, ok := seen[p.AccountID]; !ok {
			seen[p.AccountID] = struct{}{}
			ids = append(ids, p.AccountID)
		}
	}
	return ids
}
