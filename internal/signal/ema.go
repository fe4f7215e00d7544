// Package signal maintains time-decayed exponential moving averages of
// mid-price and exposes the fair-price anchor strategies read from.
package signal

import (
	"math"
	"time"
)

// EMA is a single time-aware exponentially weighted moving average.
// The update rule given previous value v, previous timestamp t_prev, and new
// sample x at time t is: alpha = 1 - exp(-dt/tau), v' = v + alpha*(x - v),
// with dt clamped to >= 0 so clock regressions never produce a negative
// decay. The first sample initializes v = x.
type EMA struct {
	tau        time.Duration
	value      *float64
	lastUpdate *time.Time
}

// NewEMA creates an EMA with the given characteristic decay time tau.
func NewEMA(tau time.Duration) *EMA {
	return &EMA{tau: tau}
}

// Update feeds a new sample x observed at time now.
func (e *EMA) Update(x float64, now time.Time) {
	if e.value == nil {
		v := x
		e.value = &v
		t := now
		e.lastUpdate = &t
		return
	}

	dt := now.Sub(*e.lastUpdate)
	if dt < 0 {
		dt = 0
	}

	alpha := 1 - math.Exp(-dt.Seconds()/e.tau.Seconds())
	newValue := *e.value + alpha*(x-*e.value)
	e.value = &newValue
	t := now
	e.lastUpdate = &t
}

// Value returns the current EMA value, if any sample has been observed.
func (e *EMA) Value() (float64, bool) {
	if e.value == nil {
		return 0, false
	}
	return *e.value, true
}
