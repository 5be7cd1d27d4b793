// Package main is the entry point for the portfolio accounting core: a
// bus-driven state machine that tracks net positions, realized and
// unrealized PnL, and account balances/margins for an algorithmic
// trading platform (spec §1).
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nxtlabs/portfolio-core/internal/accounts"
	"github.com/nxtlabs/portfolio-core/internal/adminapi"
	"github.com/nxtlabs/portfolio-core/internal/bus"
	"github.com/nxtlabs/portfolio-core/internal/cache"
	"github.com/nxtlabs/portfolio-core/internal/config"
	"github.com/nxtlabs/portfolio-core/internal/portfolio"
	"github.com/rs/zerolog"
)

// main orchestrates startup in dependency order:
//  1. Load configuration from the environment (.env + os.Getenv).
//  2. Initialize structured logging.
//  3. Construct the bus and the (fake, in-process) upstream
//     collaborators — the real object cache and accounts manager are
//     out-of-scope external systems this core only consumes (spec §1).
//  4. Construct the Portfolio, which subscribes its event handlers to
//     the bus.
//  5. Start the read-only admin HTTP surface.
//  6. Wait for SIGINT/SIGTERM and shut down gracefully.
func main() {
	var adminAddrFlag string
	flag.StringVar(&adminAddrFlag, "admin-addr", "", "Admin API listen address (overrides ADMIN_API_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}
	if adminAddrFlag != "" {
		cfg.AdminAPIAddr = adminAddrFlag
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("service", "portfolio-core").
		Logger()

	log.Info().Msg("starting portfolio-core")

	eventBus := bus.New(log)

	// The object cache and accounts manager are out-of-scope external
	// systems (spec §1); this binary wires the in-memory fakes so the
	// process is runnable end-to-end for local development and demos.
	// A production deployment replaces these two constructors with
	// clients for the real upstream systems without touching Portfolio.
	objectCache := cache.New()
	accountsMgr := accounts.New()

	p := portfolio.New(objectCache, accountsMgr, eventBus, cfg, log)
	defer p.Dispose()

	adminSrv := adminapi.New(cfg.AdminAPIAddr, p, log)
	go func() {
		if err := adminSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("admin API server failed")
		}
	}()

	log.Info().Str("admin_addr", cfg.AdminAPIAddr).Msg("portfolio-core started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down portfolio-core")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin API server forced to shutdown")
	}

	log.Info().Msg("portfolio-core stopped")
}
