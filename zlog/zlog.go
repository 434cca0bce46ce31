// Package zlog wires resilience lifecycle events into zerolog. The returned
// Hooks log every event as a structured line, so retries, timeouts, quota
// rejections and degradations show up in the service log without the
// resilience layer knowing about logging.
package zlog

import (
	"time"

	"github.com/rs/zerolog"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// NewHooks returns Hooks that log every lifecycle event through logger. The
// resource name tags each line so one logger serves many guards.
func NewHooks(logger zerolog.Logger, resource string) *resilience.Hooks {
	logger = logger.With().Str("resource", resource).Logger()

	return &resilience.Hooks{
		OnRetry: func(attempt int, err *resilience.NormalizedError) {
			logger.Warn().
				Int("attempt", attempt).
				Str("code", string(err.Code)).
				Err(err).
				Msg("retrying after transient failure")
		},

		OnTimeout: func() {
			logger.Warn().Msg("operation timed out")
		},

		OnDispatch: func(waited time.Duration) {
			logger.Debug().
				Dur("waited", waited).
				Msg("request dispatched from queue")
		},

		OnCapExhausted: func(rejected int, resetIn time.Duration) {
			logger.Error().
				Int("rejected", rejected).
				Dur("reset_in", resetIn).
				Msg("daily request cap exhausted")
		},

		OnDegraded: func(ev resilience.DegradationEvent) {
			logger.Warn().
				Str("code", string(ev.Code)).
				Err(ev.Err).
				Time("at", ev.Timestamp).
				Msg("serving degraded result")
		},

		OnCircuitOpen: func() {
			logger.Error().Msg("circuit opened")
		},

		OnCircuitClose: func() {
			logger.Info().Msg("circuit closed")
		},

		OnCircuitHalfOpen: func() {
			logger.Info().Msg("circuit half-open, probing")
		},

		OnPoolExhausted: func() {
			logger.Warn().Msg("connection pool exhausted")
		},

		OnStaleServed: func(staleResource string) {
			logger.Warn().
				Str("stale_resource", staleResource).
				Msg("serving stale cached result")
		},
	}
}
