// Package risk screens a strategy's proposed quote target against a
// pipeline of ordered checks before it reaches the order manager.
package risk

import "kraken-mm/pkg/types"

// Reason is a single finding from one check. Hard reasons force rejection;
// soft reasons only hold the tick.
type Reason struct {
	Kind string
	Side types.Side // meaningful only for per-side reasons; zero value otherwise
	Detail string
}

const (
	KillSwitchEnabled    = "kill_switch_enabled"
	MarketDataStale      = "market_data_stale"
	MissingMarketData    = "missing_market_data"
	CrossedOrInvalidBook = "crossed_or_invalid_book"
	ChurnThrottleBid     = "churn_throttle_bid"
	ChurnThrottleAsk     = "churn_throttle_ask"
	InsufficientEdge     = "insufficient_edge"
	ExposureLimit        = "exposure_limit"
	InsufficientInventory = "insufficient_inventory"
)

var hardReasons = map[string]bool{
	KillSwitchEnabled:    true,
	MarketDataStale:      true,
	CrossedOrInvalidBook: true,
}

// Outcome classifies what the engine decided for the tick.
type Outcome int

const (
	Approved Outcome = iota
	Hold
	Rejected
)

// Decision is the engine's verdict for one tick.
type Decision struct {
	Outcome         Outcome
	Target          types.QuoteTarget // meaningful only when Outcome == Approved
	Reasons         []Reason
	RequiredActions []types.OrderAction // meaningful only when Outcome == Rejected
}
