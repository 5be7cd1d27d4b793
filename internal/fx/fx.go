// Package fx implements the exchange-rate resolution policy used to
// convert cost/settlement-currency amounts into an account's base
// currency (spec §4.3).
package fx

import (
	"errors"
	"fmt"

	"github.com/nxtlabs/portfolio-core/internal/domain"
	"github.com/nxtlabs/portfolio-core/internal/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoRate is returned when the cache has no rate for the requested
// currency pair (spec §7 NoExchangeRate).
var ErrNoRate = errors.New("fx: no exchange rate available")

// RateResolver is the subset of the read-only cache the FX policy
// needs. Satisfied by any domain.ReadOnlyCache (internal/cache.Fake in
// this repository).
type RateResolver interface {
	MarkRate(from, to money.Currency) (decimal.Decimal, bool)
	DirectedRate(from, to money.Currency, side domain.OrderSide) (decimal.Decimal, bool)
}

// Config is the subset of spec §6's configuration table the FX policy
// consults.
type Config struct {
	ConvertToAccountBaseCurrency bool
	UseMarkXRates                bool
}

// Resolver resolves C -> B exchange rates per spec §4.3, grounded on
// the teacher's CurrencyExchangeService (cache-then-lookup shape, child
// logger) generalized from its hardcoded direct-pairs table to a
// cache-driven mark/directed-quote lookup.
type Resolver struct {
	cache RateResolver
	log   zerolog.Logger
}

// New constructs a Resolver over the given rate cache.
func New(cache RateResolver, log zerolog.Logger) *Resolver {
	return &Resolver{cache: cache, log: log.With().Str("component", "fx").Logger()}
}

// Rate resolves the exchange rate from -> to for converting an amount
// incurred on the given order side into the account's base currency.
//
//   - If cfg disables base-currency conversion, or `to` is unset: 1.0.
//   - Else if cfg.UseMarkXRates: the cache's mark cross-rate.
//   - Else: the cache's directed venue quote (BID if side==BUY else ASK).
//
// Returns ErrNoRate, wrapped with the currency pair, when the cache has
// nothing for the requested pair.
func (r *Resolver) Rate(from, to money.Currency, side domain.OrderSide, cfg Config) (decimal.Decimal, error) {
	if !cfg.ConvertToAccountBaseCurrency || to.IsNone() {
		return decimal.NewFromInt(1), nil
	}

	if from.Equal(to) {
		return decimal.NewFromInt(1), nil
	}

	var (
		rate decimal.Decimal
		ok   bool
	)
	if cfg.UseMarkXRates {
		rate, ok = r.cache.MarkRate(from, to)
	} else {
		rate, ok = r.cache.DirectedRate(from, to, side)
	}
	if !ok {
		r.log.Warn().
			Str("from", from.Code()).
			Str("to", to.Code()).
			Bool("use_mark_xrates", cfg.UseMarkXRates).
			Msg("no exchange rate available")
		return decimal.Decimal{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, from.Code(), to.Code())
	}
	return rate, nil
}

// Convert applies Rate to an amount, rounding the result to the target
// currency's precision (spec §4.3 "All PnL that crosses into base is
// rounded to the base currency's precision after multiplication").
// Callers that disable cfg.ConvertToAccountBaseCurrency must pass the
// amount's own currency as `to` (a no-op relabel) — Rate's 1.0
// short-circuit in that case is only correct when source and target
// already agree.
func (r *Resolver) Convert(amount money.Money, to money.Currency, side domain.OrderSide, cfg Config) (money.Money, error) {
	rate, err := r.Rate(amount.Currency(), to, side, cfg)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amount.Decimal().Mul(rate), to), nil
}
