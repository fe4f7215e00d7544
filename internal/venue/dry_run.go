package venue

import (
	"context"
	"log/slog"
	"math/rand"

	"kraken-mm/internal/execution"
	"kraken-mm/pkg/types"
)

// DryRun is an execution venue for local testing and scenario replay: every
// Place is accepted unless a 1-in-10 synthetic rejection lands, every Cancel
// succeeds immediately, and CancelAll is a log-only no-op since nothing
// ever rests on a real book.
type DryRun struct {
	broadcaster *execution.ReportBroadcaster
	logger      *slog.Logger
	rng         *rand.Rand
}

// NewDryRun creates a DryRun venue emitting reports onto broadcaster.
func NewDryRun(broadcaster *execution.ReportBroadcaster, logger *slog.Logger) *DryRun {
	return &DryRun{
		broadcaster: broadcaster,
		logger:      logger,
		rng:         rand.New(rand.NewSource(1)),
	}
}

func (v *DryRun) emit(report types.OrderReport) {
	v.logger.Info("venue report", "kind", report.Kind, "order_id", report.OrderID)
	v.broadcaster.Send(report)
}

// Execute runs every action in order. It never returns an error: dry-run
// failures are modeled as Rejected reports, not Go errors.
func (v *DryRun) Execute(ctx context.Context, actions []types.OrderAction) error {
	for _, action := range actions {
		switch action.Kind {
		case types.ActionCancelAll:
			v.logger.Info("dry run: cancelling all orders (no-op, nothing rests on a real book)")

		case types.ActionCancel:
			v.emit(types.OrderReport{Kind: types.ReportCancel, OrderID: action.OrderID, Side: action.Side})
			v.emit(types.OrderReport{Kind: types.ReportCancelled, OrderID: action.OrderID, Side: action.Side})

		case types.ActionPlace:
			order := action.Order
			v.emit(types.OrderReport{
				Kind:     types.ReportPlaced,
				OrderID:  order.OrderID,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: order.Quantity,
			})

			if v.rng.Intn(10) == 0 {
				v.emit(types.OrderReport{
					Kind:    types.ReportRejected,
					OrderID: order.OrderID,
					Side:    order.Side,
					Reason:  "rejected",
				})
				continue
			}

			v.emit(types.OrderReport{
				Kind:     types.ReportAccepted,
				OrderID:  order.OrderID,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: order.Quantity,
			})
		}
	}
	return nil
}
