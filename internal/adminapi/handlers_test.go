package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nxtlabs/portfolio-core/internal/accounts"
	"github.com/nxtlabs/portfolio-core/internal/bus"
	"github.com/nxtlabs/portfolio-core/internal/cache"
	"github.com/nxtlabs/portfolio-core/internal/config"
	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/nxtlabs/portfolio-core/internal/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eurusd = domain.NewInstrumentID("EUR/USD", "SIM")

func newTestRouter(t *testing.T) (chi.Router, *cache.Fake, *accounts.Fake) {
	t.Helper()
	c := cache.New()
	am := accounts.New()
	b := bus.New(zerolog.Nop())
	cfg := &config.Config{UseMarkPrices: true, ConvertToAccountBaseCurrency: true, MinAccountStateLoggingInterval: time.Hour}
	p := portfolio.New(c, am, b, cfg, zerolog.Nop())

	r := chi.NewRouter()
	r.Use(preserveEscapedSlashes)
	NewHandlers(p, zerolog.Nop()).RegisterRoutes(r)
	return r, c, am
}

func TestRegisterRoutes_DoesNotPanic(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		newTestRouter(t)
	})
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["initialized"])
	assert.Equal(t, float64(0), body["pending"])
}

func TestHandleAccount_NotFound(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/venues/acc-1/account", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAccount_Found(t *testing.T) {
	t.Parallel()
	r, c, _ := newTestRouter(t)
	c.SetAccount("acc-1", &domain.Account{
		ID: "acc-1", Venue: "acc-1", Type: domain.AccountTypeMargin, BaseCurrency: money.USD,
		State: domain.AccountState{BalancesLocked: map[money.Currency]money.Money{money.USD: money.New(decimal.NewFromInt(100), money.USD)}},
	})

	req := httptest.NewRequest(http.MethodGet, "/venues/acc-1/account", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MARGIN", body["type"])
	assert.Equal(t, "USD", body["base_currency"])
	locked := body["balances_locked"].(map[string]any)
	assert.Equal(t, "100.00", locked["USD"])
}

func TestHandleInstrumentPnL_MissingInstrument(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/instruments/EUR%2FUSD/SIM/pnl", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleInstrumentPnL_WithExplicitPrice(t *testing.T) {
	t.Parallel()
	r, c, _ := newTestRouter(t)
	c.SetInstrumentExists(eurusd, true)
	c.SetPositions(eurusd, "acc-1", []domain.Position{
		{
			ID: "p1", AccountID: "acc-1", InstrumentID: eurusd,
			Status: domain.PositionStatusOpen, Side: domain.PositionSideLong, EntrySide: domain.OrderSideBuy,
			Quantity: decimal.NewFromInt(10), UnitCost: decimal.NewFromFloat(1.0), Currency: money.USD,
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/instruments/EUR%2FUSD/SIM/pnl?price=1.5", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	unrealized := body["unrealized"].(map[string]any)
	assert.Equal(t, "5.00", unrealized["amount"])
	assert.Equal(t, "USD", unrealized["currency"])
}

func TestHandleInstrumentPnL_InvalidPriceIsBadRequest(t *testing.T) {
	t.Parallel()
	r, c, _ := newTestRouter(t)
	c.SetInstrumentExists(eurusd, true)

	req := httptest.NewRequest(http.MethodGet, "/instruments/EUR%2FUSD/SIM/pnl?price=not-a-number", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVenuePnL_NotFound(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/venues/unknown/pnl", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleVenueExposure_NotFound(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/venues/unknown/exposure", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
