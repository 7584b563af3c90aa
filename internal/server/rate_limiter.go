// Package server wraps a token bucket limiter for per-session throttling
// that protects the router from chatty peers.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter returns a limiter allowing burst frames per interval, or nil
// when rate limiting is disabled.
func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.Burst <= 0 {
		return nil
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(cfg.Burst)), cfg.Burst)
}
