// Package scheduling decides, tick by tick, whether the strategy pipeline
// should run at all. A pipeline of ordered, stateful policies runs in
// sequence; the first to return Skip short-circuits the rest.
package scheduling

import (
	"time"

	"kraken-mm/internal/execution"
	"kraken-mm/pkg/types"
)

// Decision is the outcome of the scheduler pipeline for one tick.
type Decision int

const (
	Evaluate Decision = iota
	Skip
)

// SkipReason explains why a policy returned Skip.
type SkipReason string

const (
	ReasonInFlight           SkipReason = "in_flight"
	ReasonNoMeaningfulChange SkipReason = "no_meaningful_change"
	ReasonNoBook             SkipReason = "no_book"
	ReasonWeekendPause       SkipReason = "weekend_pause"
	ReasonOutOfTradingHours  SkipReason = "out_of_trading_hours"
	ReasonTooSoon            SkipReason = "too_soon"
)

// ScheduleContext is the read-only context shared by every policy in the
// pipeline. Policies must not mutate any of it; they may only hold their own
// private state.
type ScheduleContext struct {
	Now         time.Time
	Instrument  types.Instrument
	MarketState *types.MarketState
	OrderMgr    *execution.OrderManager
}

// Policy is a single ordered step in the scheduler pipeline.
type Policy interface {
	Decide(ctx ScheduleContext) (Decision, SkipReason)
}

// Scheduler runs an ordered list of policies, stopping at the first Skip.
// Policy order matters and must be preserved: InFlight is checked first to
// avoid duplicating work while an action is pending.
type Scheduler struct {
	policies []Policy
}

// NewScheduler builds the required policy pipeline in spec order.
func NewScheduler(policies ...Policy) *Scheduler {
	return &Scheduler{policies: policies}
}

// Decide runs every policy in order, returning the first Skip encountered or
// Evaluate if none fire.
func (s *Scheduler) Decide(ctx ScheduleContext) (Decision, SkipReason) {
	for _, p := range s.policies {
		if decision, reason := p.Decide(ctx); decision == Skip {
			return Skip, reason
		}
	}
	return Evaluate, ""
}
