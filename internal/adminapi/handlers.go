// Package adminapi exposes a read-only go-chi HTTP surface over
// internal/portfolio's synchronous query methods (SPEC_FULL §4.8), for
// operational visibility into an otherwise headless accounting core.
package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/nxtlabs/portfolio-core/internal/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handlers serves the admin query surface over a single Portfolio.
type Handlers struct {
	portfolio *portfolio.Portfolio
	log       zerolog.Logger
}

// NewHandlers constructs admin handlers over p.
func NewHandlers(p *portfolio.Portfolio, log zerolog.Logger) *Handlers {
	return &Handlers{portfolio: p, log: log.With().Str("module", "adminapi").Logger()}
}

// HandleHealthz handles GET /healthz: whether the Portfolio has
// converged, and how many instruments are still pending.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"initialized": h.portfolio.Initialized(),
		"pending":     h.portfolio.PendingCount(),
	})
}

// HandleAccount handles GET /venues/{venue}/account.
func (h *Handlers) HandleAccount(w http.ResponseWriter, r *http.Request) {
	venue := chi.URLParam(r, "venue")
	acc, ok := h.portfolio.Account(venue)
	if !ok {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]any{
		"venue":           acc.Venue,
		"type":            acc.Type.String(),
		"base_currency":   acc.BaseCurrency.Code(),
		"balances_locked": moneyMap(acc.State.BalancesLocked),
		"margins_init":    moneyMap(acc.State.MarginsInit),
		"margins_maint":   moneyMap(acc.State.MarginsMaint),
	})
}

// HandleVenuePnL handles GET /venues/{venue}/pnl.
func (h *Handlers) HandleVenuePnL(w http.ResponseWriter, r *http.Request) {
	venue := chi.URLParam(r, "venue")

	realized, ok := h.portfolio.RealizedPnLs(venue)
	if !ok {
		http.Error(w, "venue not found or pending calculation", http.StatusNotFound)
		return
	}
	unrealized, ok := h.portfolio.UnrealizedPnLs(venue)
	if !ok {
		http.Error(w, "venue not found or pending calculation", http.StatusNotFound)
		return
	}
	total, ok := h.portfolio.TotalPnLs(venue)
	if !ok {
		http.Error(w, "venue not found or pending calculation", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]any{
		"realized":   moneyMap(realized),
		"unrealized": moneyMap(unrealized),
		"total":      moneyMap(total),
	})
}

// HandleVenueExposure handles GET /venues/{venue}/exposure.
func (h *Handlers) HandleVenueExposure(w http.ResponseWriter, r *http.Request) {
	venue := chi.URLParam(r, "venue")
	exposure, ok := h.portfolio.NetExposures(venue)
	if !ok {
		http.Error(w, "venue not found or pending calculation", http.StatusNotFound)
		return
	}
	h.writeJSON(w, moneyMap(exposure))
}

// HandleInstrumentPnL handles GET /instruments/{symbol}/{venue}/pnl,
// optionally overriding the reference price via ?price=.
func (h *Handlers) HandleInstrumentPnL(w http.ResponseWriter, r *http.Request) {
	symbol, err := url.PathUnescape(chi.URLParam(r, "symbol"))
	if err != nil {
		http.Error(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	venue, err := url.PathUnescape(chi.URLParam(r, "venue"))
	if err != nil {
		http.Error(w, "invalid venue", http.StatusBadRequest)
		return
	}
	id := domain.NewInstrumentID(symbol, venue)

	price, err := parsePriceParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	realized, err := h.portfolio.RealizedPnL(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	unrealized, err := h.portfolio.UnrealizedPnL(id, price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.portfolio.TotalPnL(id, price)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, map[string]any{
		"instrument": id.String(),
		"realized":   moneyJSON(realized),
		"unrealized": moneyJSON(unrealized),
		"total":      moneyJSON(total),
	})
}

func parsePriceParam(r *http.Request) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get("price")
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// writeError maps a query failure to a client-meaningful status:
// MissingInstrument is a permanent 404, while NoPrice/NoExchangeRate/
// MissingBetPosition (spec §7) are transient pending-calculation states
// reported as 503 rather than a generic 500 — these are expected
// conditions a poller can retry, not bugs.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.log.Debug().Err(err).Msg("query failed")
	if errors.Is(err, portfolio.ErrMissingInstrument) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func moneyJSON(m money.Money) moneyView {
	return moneyView{
		Amount:   m.Decimal().StringFixed(int32(m.Currency().Precision())),
		Currency: m.Currency().Code(),
	}
}

func moneyMap(m map[money.Currency]money.Money) map[string]string {
	out := make(map[string]string, len(m))
	for ccy, amount := range m {
		out[ccy.Code()] = amount.Decimal().StringFixed(int32(ccy.Precision()))
	}
	return out
}
