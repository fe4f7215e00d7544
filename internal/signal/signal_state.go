package signal

import (
	"time"

	"kraken-mm/pkg/types"
)

// State holds one fast EMA over mid-price, throttled by a minimum update
// interval so bursts of market events don't micro-update the average. The
// decay horizon (tau) is chosen by the caller to match the strategy it feeds
// (a tight tau for Simple Market Maker, a slow one for Mean-Reversion).
type State struct {
	ema               *EMA
	minUpdateInterval time.Duration
	lastUpdate        *time.Time
}

// DefaultMinUpdateInterval matches the reference engine's default.
const DefaultMinUpdateInterval = 350 * time.Millisecond

// NewState creates a SignalState with the given EMA decay time.
func NewState(tau time.Duration) *State {
	return &State{
		ema:               NewEMA(tau),
		minUpdateInterval: DefaultMinUpdateInterval,
	}
}

// WithMinUpdateInterval overrides the default throttle.
func (s *State) WithMinUpdateInterval(d time.Duration) *State {
	s.minUpdateInterval = d
	return s
}

// Update reads market.MidPrice() and, subject to the minimum update
// interval, feeds it to the EMA. A missing mid price is a no-op.
func (s *State) Update(market *types.MarketState, now time.Time) {
	mid, ok := market.MidPrice()
	if !ok {
		return
	}
	if s.lastUpdate != nil && now.Sub(*s.lastUpdate) < s.minUpdateInterval {
		return
	}
	s.ema.Update(mid, now)
	s.lastUpdate = &now
}

// EmaMid returns the latest fast-EMA value, if any sample has been observed.
func (s *State) EmaMid() (float64, bool) {
	return s.ema.Value()
}
