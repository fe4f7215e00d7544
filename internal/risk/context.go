package risk

import (
	"time"

	"kraken-mm/pkg/types"
)

// Context is the read-only view every check receives for a tick.
type Context struct {
	Instrument  types.Instrument
	MarketState *types.MarketState
	Target      types.QuoteTarget
	Inventory   types.Inventory
	Now         time.Time
}

// Check is a single ordered step in the risk pipeline. Checks may hold
// private state (last update times, last prices) across ticks.
type Check interface {
	Name() string
	Evaluate(ctx Context) []Reason
}
