package risk

import (
	"fmt"
	"math"
	"time"

	"kraken-mm/pkg/types"
)

// KillSwitchCheck force-rejects every tick while Enabled, regardless of
// market or target state. Set from the operator's --kill-switch flag or
// through Engine.SetKillSwitch; venue errors do not flip it.
type KillSwitchCheck struct {
	Enabled bool
}

func (c *KillSwitchCheck) Name() string { return "KillSwitchCheck" }

func (c *KillSwitchCheck) Evaluate(Context) []Reason {
	if c.Enabled {
		return []Reason{{Kind: KillSwitchEnabled}}
	}
	return nil
}

// MarketFreshnessCheck rejects once the market state hasn't seen an event
// within MaxStaleness.
type MarketFreshnessCheck struct {
	MaxStaleness time.Duration
}

func NewMarketFreshnessCheck(maxStaleness time.Duration) *MarketFreshnessCheck {
	return &MarketFreshnessCheck{MaxStaleness: maxStaleness}
}

func (c *MarketFreshnessCheck) Name() string { return "MarketFreshnessCheck" }

func (c *MarketFreshnessCheck) Evaluate(ctx Context) []Reason {
	if ctx.MarketState.IsStale(c.MaxStaleness, ctx.Now) {
		return []Reason{{Kind: MarketDataStale}}
	}
	return nil
}

// MarketSanityCheck rejects unless both sides of the book are present,
// finite, positive, and bid < ask.
type MarketSanityCheck struct{}

func (c *MarketSanityCheck) Name() string { return "MarketSanityCheck" }

func (c *MarketSanityCheck) Evaluate(ctx Context) []Reason {
	bid, bidOK := ctx.MarketState.BestBid()
	ask, askOK := ctx.MarketState.BestAsk()
	if bidOK && askOK && finite(bid) && finite(ask) && bid > 0 && ask > 0 && bid < ask {
		return nil
	}
	return []Reason{{Kind: CrossedOrInvalidBook}}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ChurnThrottleCheck suppresses a side's price change when it occurs within
// MinUpdateInterval of the last recorded change on that side. A throttled
// change does not update the recorded (time, price) baseline.
type ChurnThrottleCheck struct {
	MinUpdateInterval time.Duration

	lastBidUpdate time.Time
	lastAskUpdate time.Time
	lastBidPrice  *float64
	lastAskPrice  *float64
}

func NewChurnThrottleCheck(minUpdateInterval time.Duration) *ChurnThrottleCheck {
	return &ChurnThrottleCheck{MinUpdateInterval: minUpdateInterval}
}

func (c *ChurnThrottleCheck) Name() string { return "ChurnThrottleCheck" }

func (c *ChurnThrottleCheck) Evaluate(ctx Context) []Reason {
	tick := ctx.Instrument.TradingRules.PriceTick
	var reasons []Reason

	if ctx.Target.Bid != nil {
		price := float64(ctx.Target.Bid.Price)
		if movedEnough(c.lastBidPrice, price, tick) {
			if isTooSoon(ctx.Now, c.lastBidUpdate, c.MinUpdateInterval) {
				reasons = append(reasons, Reason{Kind: ChurnThrottleBid})
			} else {
				c.lastBidUpdate = ctx.Now
				c.lastBidPrice = &price
			}
		}
	}

	if ctx.Target.Ask != nil {
		price := float64(ctx.Target.Ask.Price)
		if movedEnough(c.lastAskPrice, price, tick) {
			if isTooSoon(ctx.Now, c.lastAskUpdate, c.MinUpdateInterval) {
				reasons = append(reasons, Reason{Kind: ChurnThrottleAsk})
			} else {
				c.lastAskUpdate = ctx.Now
				c.lastAskPrice = &price
			}
		}
	}

	return reasons
}

func isTooSoon(now, last time.Time, minInterval time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < minInterval
}

func movedEnough(previous *float64, next, tick float64) bool {
	if previous == nil {
		return true
	}
	eps := math.Max(math.Abs(tick)*0.5, 1e-12)
	return math.Abs(next-*previous) >= eps
}

// MinEdgeCheck rejects when the current half-spread is below the
// instrument's configured min_half_spread.
type MinEdgeCheck struct {
	MinHalfSpread float64
}

func NewMinEdgeCheck(instrument types.Instrument) *MinEdgeCheck {
	return &MinEdgeCheck{MinHalfSpread: instrument.TradingRules.MinHalfSpread}
}

func (c *MinEdgeCheck) Name() string { return "MinEdgeCheck" }

func (c *MinEdgeCheck) Evaluate(ctx Context) []Reason {
	bid, bidOK := ctx.MarketState.BestBid()
	ask, askOK := ctx.MarketState.BestAsk()
	if !bidOK || !askOK {
		return []Reason{{Kind: MissingMarketData}}
	}

	half := (ask - bid) / 2
	if half < c.MinHalfSpread {
		return []Reason{{Kind: InsufficientEdge, Detail: fmt.Sprintf("half_spread=%.6f required=%.6f", half, c.MinHalfSpread)}}
	}
	return nil
}

// ExposureLimitCheck rejects (soft) when filling the proposed target would
// push projected base exposure past the instrument's max_exposure_in_quote,
// guarding against a strategy bug even though the strategy layer already
// self-limits.
type ExposureLimitCheck struct {
	MaxExposureInQuote float64
}

func NewExposureLimitCheck(maxExposureInQuote float64) *ExposureLimitCheck {
	return &ExposureLimitCheck{MaxExposureInQuote: maxExposureInQuote}
}

func (c *ExposureLimitCheck) Name() string { return "ExposureLimitCheck" }

func (c *ExposureLimitCheck) Evaluate(ctx Context) []Reason {
	mid, ok := ctx.MarketState.MidPrice()
	if !ok {
		return []Reason{{Kind: MissingMarketData}}
	}

	var reasons []Reason
	if ctx.Target.Bid != nil {
		projected := ctx.Inventory.Base + ctx.Target.Bid.Quantity
		exposure := projected * mid
		if exposure > c.MaxExposureInQuote {
			reasons = append(reasons, Reason{Kind: ExposureLimit, Side: types.Buy, Detail: fmt.Sprintf("exposure_quote=%.6f max=%.6f", exposure, c.MaxExposureInQuote)})
		}
	}
	if ctx.Target.Ask != nil {
		projected := ctx.Inventory.Base - ctx.Target.Ask.Quantity
		exposure := projected * mid
		if exposure < -c.MaxExposureInQuote {
			reasons = append(reasons, Reason{Kind: ExposureLimit, Side: types.Sell, Detail: fmt.Sprintf("exposure_quote=%.6f max=%.6f", exposure, c.MaxExposureInQuote)})
		}
	}
	return reasons
}

// InventoryAvailableCheck rejects (soft) a bid whose notional exceeds
// available quote inventory, or an ask whose quantity exceeds available
// base inventory. Distinct from ExposureLimitCheck: this guards settlement,
// not the exposure ceiling.
type InventoryAvailableCheck struct{}

func (c *InventoryAvailableCheck) Name() string { return "InventoryAvailableCheck" }

func (c *InventoryAvailableCheck) Evaluate(ctx Context) []Reason {
	var reasons []Reason
	if ctx.Target.Bid != nil {
		required := float64(ctx.Target.Bid.Price) * ctx.Target.Bid.Quantity
		if required > ctx.Inventory.Quote {
			reasons = append(reasons, Reason{Kind: InsufficientInventory, Side: types.Buy, Detail: fmt.Sprintf("required=%.6f available=%.6f", required, ctx.Inventory.Quote)})
		}
	}
	if ctx.Target.Ask != nil {
		required := ctx.Target.Ask.Quantity
		if required > ctx.Inventory.Base {
			reasons = append(reasons, Reason{Kind: InsufficientInventory, Side: types.Sell, Detail: fmt.Sprintf("required=%.6f available=%.6f", required, ctx.Inventory.Base)})
		}
	}
	return reasons
}
