package scheduling

import (
	"time"
)

// InFlightPolicy skips evaluation whenever either side has a pending
// place/cancel in flight, avoiding duplicate work before the venue responds.
// Checked first in the pipeline for this reason.
type InFlightPolicy struct{}

func (InFlightPolicy) Decide(ctx ScheduleContext) (Decision, SkipReason) {
	if ctx.OrderMgr.HasInflightActions() {
		return Skip, ReasonInFlight
	}
	return Evaluate, ""
}

// TopOfBookTickMovePolicy skips evaluation when top of book hasn't moved by
// at least MinTicks since the last evaluation, unless MaxStale has elapsed
// (in which case it evaluates anyway to avoid starving the strategy on a
// perfectly quiet book).
type TopOfBookTickMovePolicy struct {
	MinTicks float64
	MaxStale time.Duration

	lastBid       *float64
	lastAsk       *float64
	lastEvaluated time.Time
}

// DefaultMaxStale matches the reference engine's default.
const DefaultMaxStale = time.Second

// NewTopOfBookTickMovePolicy constructs the policy with the given min tick
// move and the reference engine's default max_stale.
func NewTopOfBookTickMovePolicy(minTicks float64) *TopOfBookTickMovePolicy {
	return &TopOfBookTickMovePolicy{MinTicks: minTicks, MaxStale: DefaultMaxStale}
}

func (p *TopOfBookTickMovePolicy) Decide(ctx ScheduleContext) (Decision, SkipReason) {
	bid, bidOK := ctx.MarketState.BestBid()
	ask, askOK := ctx.MarketState.BestAsk()
	if !bidOK || !askOK {
		return Skip, ReasonNoBook
	}

	tick := ctx.Instrument.TradingRules.PriceTick
	threshold := p.MinTicks * tick

	if p.lastBid != nil && p.lastAsk != nil {
		bidMoved := absf(bid-*p.lastBid) >= threshold
		askMoved := absf(ask-*p.lastAsk) >= threshold
		stale := !p.lastEvaluated.IsZero() && ctx.Now.Sub(p.lastEvaluated) > p.MaxStale
		if !bidMoved && !askMoved && !stale {
			return Skip, ReasonNoMeaningfulChange
		}
	}

	p.lastBid = &bid
	p.lastAsk = &ask
	p.lastEvaluated = ctx.Now
	return Evaluate, ""
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// TradingHoursPolicy skips evaluation outside the instrument's configured
// trading window, including an optional weekend pause. Instruments without
// TradingHours configured always evaluate.
type TradingHoursPolicy struct{}

func NewTradingHoursPolicy() *TradingHoursPolicy {
	return &TradingHoursPolicy{}
}

func (p *TradingHoursPolicy) Decide(ctx ScheduleContext) (Decision, SkipReason) {
	hours := ctx.Instrument.TradingRules.TradingHours
	if hours == nil {
		return Evaluate, ""
	}

	if hours.WeekendPause {
		switch ctx.Now.UTC().Weekday() {
		case time.Saturday, time.Sunday:
			return Skip, ReasonWeekendPause
		}
	}
	if !hours.Active(ctx.Now) {
		return Skip, ReasonOutOfTradingHours
	}
	return Evaluate, ""
}

// MinIntervalPolicy skips evaluation when the tracked placement timestamp
// lies within MinInterval. The timestamp advances to the evaluation time
// whenever the order manager shows live or in-flight orders; the policy does
// not observe Placed reports.
type MinIntervalPolicy struct {
	MinInterval time.Duration

	lastPlacement time.Time
}

func NewMinIntervalPolicy(minInterval time.Duration) *MinIntervalPolicy {
	return &MinIntervalPolicy{MinInterval: minInterval}
}

func (p *MinIntervalPolicy) Decide(ctx ScheduleContext) (Decision, SkipReason) {
	if !p.lastPlacement.IsZero() && ctx.Now.Sub(p.lastPlacement) < p.MinInterval {
		return Skip, ReasonTooSoon
	}
	if ctx.OrderMgr.HasLiveOrders() || ctx.OrderMgr.HasInflightActions() {
		p.lastPlacement = ctx.Now
	}
	return Evaluate, ""
}
