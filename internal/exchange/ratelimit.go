// ratelimit.go wraps golang.org/x/time/rate for Kraken's private REST
// endpoints. Kraken counts a "cost" per call against a decaying counter per
// API key; treating Order/Cancel calls as their own limiter with a
// sustainable steady-state rate (plus a small burst) keeps the client well
// under the venue's ban threshold without reimplementing a decay counter by
// hand — golang.org/x/time/rate already is exactly that token bucket.
package exchange

import (
	"golang.org/x/time/rate"
)

// RateLimiter groups rate.Limiters by Kraken REST endpoint category. Every
// mutating call must Wait() on the matching limiter before issuing the HTTP
// request.
type RateLimiter struct {
	Order  *rate.Limiter // AddOrder
	Cancel *rate.Limiter // CancelOrder, CancelAll
}

// NewRateLimiter creates limiters tuned to a conservative steady-state rate
// for Kraken's private trading endpoints: a burst of 4 with 1 request/sec
// sustained refill, comfortably below Kraken's documented per-key decay
// limits for the standard tier.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  rate.NewLimiter(rate.Limit(1), 4),
		Cancel: rate.NewLimiter(rate.Limit(1), 4),
	}
}
