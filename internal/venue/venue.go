// Package venue implements the execution venues the engine can trade
// against: an in-memory DryRun venue for local testing and scenario
// replay, and the Kraken venue backed by internal/exchange's REST client.
package venue

import (
	"context"

	"kraken-mm/pkg/types"
)

// Venue executes order actions and emits the resulting reports onto the
// broadcaster it was constructed with. Execute processes actions in order;
// a venue may emit more than one report per action (e.g. Cancel emits an
// in-band Cancel report before its terminal outcome).
type Venue interface {
	Execute(ctx context.Context, actions []types.OrderAction) error
}
