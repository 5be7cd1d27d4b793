package adminapi

import "github.com/go-chi/chi/v5"

// RegisterRoutes wires the admin query surface (SPEC_FULL §4.8) onto r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthz)

	r.Route("/venues/{venue}", func(r chi.Router) {
		r.Get("/account", h.HandleAccount)
		r.Get("/pnl", h.HandleVenuePnL)
		r.Get("/exposure", h.HandleVenueExposure)
	})

	r.Route("/instruments/{symbol}/{venue}", func(r chi.Router) {
		r.Get("/pnl", h.HandleInstrumentPnL)
	})
}
