// Package strategy turns market and signal state into a desired two-sided
// quote target, or a reason it declines to quote at all. Strategies are pure
// functions of their inputs; they never mutate state.
package strategy

import (
	"fmt"

	"kraken-mm/internal/signal"
	"kraken-mm/pkg/types"
)

// NoQuoteReason is a first-class negative result, not a fault: it tells the
// caller why no quote was produced this tick.
type NoQuoteReason struct {
	kind string
	msg  string
}

func (r *NoQuoteReason) Error() string { return r.msg }

// Is lets errors.Is compare NoQuoteReason values by kind, ignoring any
// embedded detail (deviation ticks, exposure figures, ...).
func (r *NoQuoteReason) Is(target error) bool {
	other, ok := target.(*NoQuoteReason)
	if !ok {
		return false
	}
	return r.kind == other.kind
}

func newReason(kind, msg string) *NoQuoteReason { return &NoQuoteReason{kind: kind, msg: msg} }

var (
	MissingTopOfBook             = newReason("missing_top_of_book", "no top of book")
	MissingMid                   = newReason("missing_mid", "no mid price")
	MissingEma                   = newReason("missing_ema", "no fast EMA value")
	MissingSlowEma               = newReason("missing_slow_ema", "no slow EMA value")
	InvalidQuantity              = newReason("invalid_quantity", "computed quantity is not positive")
	WouldCrossPostOnly           = newReason("would_cross_post_only", "clamped price would cross the book")
	BothSidesSuppressedByExposure = newReason("both_sides_suppressed", "exposure suppressed both sides")
	PullbackNotMet               = newReason("pullback_not_met", "pullback condition not met")
)

// belowEntryThreshold, tooLongExposure, tooShortExposure carry detail, so
// they're constructed per-call rather than being package-level singletons;
// errors.Is still matches them by kind via NoQuoteReason.Is.

func belowEntryThreshold(devTicks, thresholdTicks float64) *NoQuoteReason {
	return newReason("below_entry_threshold", fmt.Sprintf("deviation %.4f ticks below threshold %.4f", devTicks, thresholdTicks))
}

func tooLongExposure(exposure, max float64) *NoQuoteReason {
	return newReason("too_long_exposure", fmt.Sprintf("exposure %.2f exceeds max %.2f (long)", exposure, max))
}

func tooShortExposure(exposure, max float64) *NoQuoteReason {
	return newReason("too_short_exposure", fmt.Sprintf("exposure %.2f exceeds max %.2f (short)", -exposure, max))
}

// Strategy computes a QuoteTarget from market state, signal state and the
// latest inventory snapshot. Implementations never mutate their inputs.
type Strategy interface {
	ComputeTarget(market *types.MarketState, sig *signal.State, inventory types.Inventory) (types.QuoteTarget, error)
}

// Context bundles the instrument rules every strategy needs. Free functions
// take it explicitly rather than relying on embedding, since Go has no
// blanket-impl-via-trait mechanism.
type Context struct {
	Instrument types.Instrument
}

func (c Context) tick() float64 { return c.Instrument.TradingRules.PriceTick }

func (c Context) rules() types.TradingRules { return c.Instrument.TradingRules }

// bestBidAsk returns the top of book or MissingTopOfBook.
func bestBidAsk(market *types.MarketState) (bid, ask float64, err error) {
	bid, ok := market.BestBid()
	if !ok {
		return 0, 0, MissingTopOfBook
	}
	ask, ok = market.BestAsk()
	if !ok {
		return 0, 0, MissingTopOfBook
	}
	return bid, ask, nil
}

// fairPrice prefers the fast EMA, falling back to the raw mid.
func fairPrice(market *types.MarketState, sig *signal.State) (float64, error) {
	if v, ok := sig.EmaMid(); ok {
		return v, nil
	}
	if v, ok := market.MidPrice(); ok {
		return v, nil
	}
	return 0, MissingMid
}

// sizeFromNotional sizes an order off the instrument's max_order_notional.
func (c Context) sizeFromNotional(price float64) (float64, error) {
	q := c.rules().QuantityFromNotional(c.rules().MaxOrderNotional, price)
	if q <= 0 {
		return 0, InvalidQuantity
	}
	return q, nil
}

// clampBid caps a bid so it never crosses the ask side of the book.
func (c Context) clampBid(bid, bestAsk float64) float64 {
	if max := bestAsk - c.tick(); bid > max {
		return max
	}
	return bid
}

// clampAsk floors an ask so it never crosses the bid side of the book.
func (c Context) clampAsk(ask, bestBid float64) float64 {
	if min := bestBid + c.tick(); ask < min {
		return min
	}
	return ask
}
