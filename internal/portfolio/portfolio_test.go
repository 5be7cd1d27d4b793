package portfolio

import (
	"testing"
	"time"

	"github.com/nxtlabs/portfolio-core/internal/accounts"
	"github.com/nxtlabs/portfolio-core/internal/bus"
	"github.com/nxtlabs/portfolio-core/internal/cache"
	"github.com/nxtlabs/portfolio-core/internal/config"
	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eurusd = domain.NewInstrumentID("EUR/USD", "SIM")

func newTestPortfolio() (*Portfolio, *cache.Fake, *accounts.Fake, *bus.Bus) {
	c := cache.New()
	am := accounts.New()
	b := bus.New(zerolog.Nop())
	cfg := &config.Config{
		UseMarkPrices:                  true,
		ConvertToAccountBaseCurrency:   true,
		BarUpdates:                     true,
		MinAccountStateLoggingInterval: time.Hour,
	}
	p := New(c, am, b, cfg, zerolog.Nop())
	return p, c, am, b
}

func openLong(id domain.PositionID, accountID domain.AccountID, qty, unitCost string) domain.Position {
	return domain.Position{
		ID:           id,
		AccountID:    accountID,
		InstrumentID: eurusd,
		Status:       domain.PositionStatusOpen,
		Side:         domain.PositionSideLong,
		EntrySide:    domain.OrderSideBuy,
		Quantity:     decimal.RequireFromString(qty),
		UnitCost:     decimal.RequireFromString(unitCost),
		Currency:     money.USD,
	}
}

func TestInitializeOrders_MissingAccount(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPortfolio()
	err := p.InitializeOrders("acc-1")
	assert.ErrorIs(t, err, ErrMissingAccount)
}

func TestInitializeOrders_AppliesStateFromPassiveOrders(t *testing.T) {
	t.Parallel()
	p, c, am, _ := newTestPortfolio()

	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", Type: domain.AccountTypeCash, CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetInstrumentExists(eurusd, true)
	c.SetOpenOrders("acc-1", []domain.OpenOrder{{AccountID: "acc-1", InstrumentID: eurusd, Kind: domain.OrderKindLimit}})
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-1"})

	require.NoError(t, p.InitializeOrders("acc-1"))

	calls := am.OrdersCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, eurusd, calls[0].InstrumentID)
	assert.Len(t, calls[0].OpenOrders, 1)

	got, ok := p.Account("acc-1")
	require.True(t, ok)
	assert.Equal(t, "ev-1", got.State.EventID)
}

func TestInitializePositions_PrimesPnLAndRebuildsLedger(t *testing.T) {
	t.Parallel()
	p, c, am, _ := newTestPortfolio()

	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", Type: domain.AccountTypeMargin, CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetInstrumentExists(eurusd, true)
	pos := openLong("p1", "acc-1", "10", "1.0")
	c.SetPositions(eurusd, "acc-1", []domain.Position{pos})
	c.SetMarkPrice(eurusd, decimal.NewFromFloat(1.2))
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-pos"})

	require.NoError(t, p.InitializePositions("acc-1"))

	assert.True(t, p.IsNetLong(eurusd))
	assert.True(t, p.NetPosition(eurusd).Equal(decimal.NewFromInt(10)))

	unrealized, err := p.UnrealizedPnL(eurusd, nil)
	require.NoError(t, err)
	assert.True(t, unrealized.Equal(money.New(decimal.NewFromInt(2), money.USD)))

	assert.Len(t, am.PositionsCalls(), 1)
	assert.True(t, p.Initialized())
}

func TestHandleOrderEvent_IgnoresNonStopLimitReject(t *testing.T) {
	t.Parallel()
	p, c, am, b := newTestPortfolio()
	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", CalculateAccountState: true}
	c.SetAccount("acc-1", acc)

	b.Publish(bus.TopicOrders, domain.OrderEvent{
		Kind:         domain.OrderRejected,
		OrderKind:    domain.OrderKindMarket,
		AccountID:    "acc-1",
		InstrumentID: eurusd,
	})

	assert.Empty(t, am.OrdersCalls())
}

func TestHandleOrderEvent_FilledUpdatesBalancesThenOrders(t *testing.T) {
	t.Parallel()
	p, c, am, b := newTestPortfolio()
	_ = p
	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetOpenOrders("acc-1", nil)
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-fill"})

	b.Publish(bus.TopicOrders, domain.OrderEvent{
		Kind:         domain.OrderFilled,
		AccountID:    "acc-1",
		InstrumentID: eurusd,
		FillPrice:    decimal.NewFromFloat(1.1),
		FillQty:      decimal.NewFromInt(10),
	})

	assert.Len(t, am.FillCalls(), 1)
	assert.Len(t, am.OrdersCalls(), 1)
}

func TestHandleOrderEvent_CalculateAccountStateOffIsNoOp(t *testing.T) {
	t.Parallel()
	p, c, am, b := newTestPortfolio()
	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", CalculateAccountState: false}
	c.SetAccount("acc-1", acc)
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-fill"})

	b.Publish(bus.TopicOrders, domain.OrderEvent{
		Kind:         domain.OrderFilled,
		AccountID:    "acc-1",
		InstrumentID: eurusd,
		FillPrice:    decimal.NewFromFloat(1.1),
		FillQty:      decimal.NewFromInt(10),
	})

	assert.Empty(t, am.FillCalls())
	assert.Empty(t, am.OrdersCalls())

	got, ok := p.Account("acc-1")
	require.True(t, ok)
	assert.Empty(t, got.State.EventID)
}

func TestHandleOrderEvent_FilledOnBettingInstrumentAggregatesExposure(t *testing.T) {
	t.Parallel()
	p, c, am, b := newTestPortfolio()
	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetInstrumentExists(eurusd, true)
	c.SetOpenOrders("acc-1", nil)
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-fill"})

	bet := domain.Position{
		ID:             "p1",
		AccountID:      "acc-1",
		InstrumentID:   eurusd,
		Status:         domain.PositionStatusOpen,
		Currency:       money.USD,
		IsBettingInstr: true,
	}
	c.SetPositions(eurusd, "acc-1", []domain.Position{bet})

	b.Publish(bus.TopicOrders, domain.OrderEvent{
		Kind:         domain.OrderFilled,
		AccountID:    "acc-1",
		InstrumentID: eurusd,
		Side:         domain.OrderSideBuy,
		FillPrice:    decimal.NewFromFloat(2.0),
		FillQty:      decimal.NewFromInt(10),
	})
	b.Publish(bus.TopicOrders, domain.OrderEvent{
		Kind:         domain.OrderFilled,
		AccountID:    "acc-1",
		InstrumentID: eurusd,
		Side:         domain.OrderSideSell,
		FillPrice:    decimal.NewFromFloat(3.0),
		FillQty:      decimal.NewFromInt(5),
	})

	// exposure = +10 (BUY stake) - 5 (SELL stake) = 5
	exposure, err := p.NetExposure(eurusd, nil)
	require.NoError(t, err)
	assert.True(t, exposure.Equal(money.New(decimal.NewFromInt(5), money.USD)))
}

func TestHandlePositionEvent_RebuildsLedgerAndInvalidatesPnL(t *testing.T) {
	t.Parallel()
	p, c, _, b := newTestPortfolio()
	c.SetInstrumentExists(eurusd, true)
	c.SetPositions(eurusd, "acc-1", []domain.Position{openLong("p1", "acc-1", "5", "1.0")})

	// Prime the unrealized-PnL cache at mark 1.2: (1.2 - 1.0) * 5 = 1.
	c.SetMarkPrice(eurusd, decimal.NewFromFloat(1.2))
	before, err := p.UnrealizedPnL(eurusd, nil)
	require.NoError(t, err)
	assert.True(t, before.Equal(money.New(decimal.NewFromInt(1), money.USD)))
	c.SetMarkPrice(eurusd, decimal.NewFromFloat(1.4))

	b.Publish(bus.TopicPositions, domain.PositionEvent{
		Kind:         domain.PositionOpened,
		InstrumentID: eurusd,
		PositionID:   "p1",
	})

	assert.True(t, p.IsNetLong(eurusd))
	assert.True(t, p.NetPosition(eurusd).Equal(decimal.NewFromInt(5)))

	// The event dropped the cached figure: the new mark 1.4 is used,
	// (1.4 - 1.0) * 5 = 2.
	after, err := p.UnrealizedPnL(eurusd, nil)
	require.NoError(t, err)
	assert.True(t, after.Equal(money.New(decimal.NewFromInt(2), money.USD)))
}

func TestHandleAccountState_IdempotentByEventID(t *testing.T) {
	t.Parallel()
	p, _, _, b := newTestPortfolio()

	b.Publish(bus.TopicAccounts, domain.AccountState{AccountID: "acc-1", EventID: "ev-1"})
	b.Publish(bus.TopicAccounts, domain.AccountState{AccountID: "acc-1", EventID: "ev-1"})

	acc, ok := p.Account("acc-1")
	require.True(t, ok)
	assert.Equal(t, "ev-1", acc.State.EventID)
}

func TestHandleAccountState_CreatesAccountOnFirstSight(t *testing.T) {
	t.Parallel()
	p, _, _, b := newTestPortfolio()

	b.Publish(bus.TopicAccounts, domain.AccountState{AccountID: "new-venue", EventID: "ev-1"})

	acc, ok := p.Account("new-venue")
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("new-venue"), acc.ID)
}

func TestRealizedAndUnrealizedPnL_MissingInstrument(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPortfolio()
	_, err := p.RealizedPnL(eurusd)
	assert.ErrorIs(t, err, ErrMissingInstrument)
	_, err = p.UnrealizedPnL(eurusd, nil)
	assert.ErrorIs(t, err, ErrMissingInstrument)
}

func TestUnrealizedPnL_MissingPriceAddsPendingThenQuoteTickClears(t *testing.T) {
	t.Parallel()
	p, c, am, b := newTestPortfolio()
	// Quote-driven pricing: with mark prices on, a LONG position would
	// never be valued at the quote's bid.
	p.cfg.UseMarkPrices = false
	c.SetInstrumentExists(eurusd, true)
	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetPositions(eurusd, "acc-1", []domain.Position{openLong("p1", "acc-1", "10", "1.0")})
	c.SetOpenOrders("acc-1", nil)
	am.SetResult("acc-1", domain.AccountState{AccountID: "acc-1", EventID: "ev-1"})

	// No price registered yet: UnrealizedPnL fails and enrolls the
	// instrument in PendingCalcs.
	_, err := p.UnrealizedPnL(eurusd, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, p.PendingCount())
	assert.False(t, p.Initialized())

	// A quote tick arrives: the Portfolio re-drives and clears pending.
	c.SetQuote(eurusd, decimal.NewFromFloat(1.0), decimal.NewFromFloat(1.2))
	b.Publish(bus.TopicQuotes, domain.QuoteTick{InstrumentID: eurusd, Bid: decimal.NewFromFloat(1.0), Ask: decimal.NewFromFloat(1.2)})

	assert.Equal(t, 0, p.PendingCount())
	assert.True(t, p.Initialized())

	result, err := p.UnrealizedPnL(eurusd, nil)
	require.NoError(t, err)
	assert.True(t, result.Equal(money.New(decimal.NewFromInt(0), money.USD)))
}

func TestRealizedPnLs_AggregatesAcrossVenueInstruments(t *testing.T) {
	t.Parallel()
	p, c, _, _ := newTestPortfolio()

	acc := &domain.Account{ID: "acc-1", Venue: "acc-1", BaseCurrency: money.USD, CalculateAccountState: true}
	c.SetAccount("acc-1", acc)
	c.SetInstrumentExists(eurusd, true)

	pos := openLong("p1", "acc-1", "10", "1.0")
	closed := pos
	closed.ID = "p2"
	closed.Status = domain.PositionStatusClosed
	closed.Side = domain.PositionSideFlat
	realized := money.New(decimal.NewFromInt(5), money.USD)
	closed.RealizedPnL = &realized
	c.SetPositions(eurusd, "acc-1", []domain.Position{pos, closed})

	totals, ok := p.RealizedPnLs("acc-1")
	require.True(t, ok)
	assert.True(t, totals[money.USD].Equal(money.New(decimal.NewFromInt(5), money.USD)))
}

func TestReset_ClearsLedgerPnLAndPending(t *testing.T) {
	t.Parallel()
	p, c, _, _ := newTestPortfolio()
	c.SetInstrumentExists(eurusd, true)
	c.SetPositions(eurusd, "acc-1", []domain.Position{openLong("p1", "acc-1", "10", "1.0")})

	p.HandlePositionEvent(domain.PositionEvent{InstrumentID: eurusd, PositionID: "p1"})
	assert.True(t, p.IsNetLong(eurusd))

	p.Reset()
	assert.True(t, p.IsFlat(eurusd))
	assert.False(t, p.Initialized())
	assert.Equal(t, 0, p.PendingCount())
}

func TestIsCompletelyFlat(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPortfolio()
	assert.True(t, p.IsCompletelyFlat())
}
