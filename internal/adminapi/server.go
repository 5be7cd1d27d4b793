package adminapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nxtlabs/portfolio-core/internal/portfolio"
	"github.com/rs/zerolog"
)

// preserveEscapedSlashes keeps a %2F in an instrument symbol (e.g.
// "EUR/USD") from being decoded into a literal path separator before
// chi splits the path into segments, which would otherwise misroute
// /instruments/{symbol}/{venue}/pnl for any symbol containing a slash.
func preserveEscapedSlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		rctx.RoutePath = "/" + strings.TrimPrefix(r.URL.EscapedPath(), "/")
		next.ServeHTTP(w, r)
	})
}

// Server wraps a chi router and *http.Server exposing the admin query
// surface, mirroring the teacher's server.New/Start/Shutdown shape.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// New builds a Server listening on addr, serving p's query surface.
func New(addr string, p *portfolio.Portfolio, log zerolog.Logger) *Server {
	log = log.With().Str("component", "adminapi").Logger()

	r := chi.NewRouter()
	r.Use(preserveEscapedSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	NewHandlers(p, log).RegisterRoutes(r)

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start runs the HTTP server, blocking until it stops. Returns
// http.ErrServerClosed on a clean Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("admin API listening")
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
