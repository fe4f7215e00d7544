package venue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kraken-mm/internal/exchange"
	"kraken-mm/internal/execution"
	"kraken-mm/pkg/types"
)

// Kraken is the live execution venue, backed by exchange.Client's signed
// REST calls. Every Place and Cancel round-trips to Kraken's private API;
// CancelOrder failures containing "unknown order" are treated as an
// already-terminal cancel, matching Kraken's idempotent cancel semantics.
type Kraken struct {
	client      *exchange.Client
	broadcaster *execution.ReportBroadcaster
	logger      *slog.Logger
}

// NewKraken creates a Kraken venue emitting reports onto broadcaster.
func NewKraken(client *exchange.Client, broadcaster *execution.ReportBroadcaster, logger *slog.Logger) *Kraken {
	return &Kraken{client: client, broadcaster: broadcaster, logger: logger}
}

func (v *Kraken) emit(report types.OrderReport) {
	v.broadcaster.Send(report)
}

// Execute runs every action in order, issuing the matching Kraken REST call
// and translating its outcome into a terminal report.
func (v *Kraken) Execute(ctx context.Context, actions []types.OrderAction) error {
	for _, action := range actions {
		switch action.Kind {
		case types.ActionCancelAll:
			v.logger.Warn("cancelling all orders on venue")

			result, err := v.client.CancelAll(ctx)
			if err != nil {
				v.logger.Error("cancel all failed", "error", err)
				v.emit(types.OrderReport{Kind: types.ReportVenueError, Message: fmt.Sprintf("cancel all failed: %v", err)})
				continue
			}
			v.logger.Warn("cancel all complete", "count", result.Count)
			v.emit(types.OrderReport{Kind: types.ReportCancelledAll, CancelCount: result.Count})

		case types.ActionCancel:
			v.emit(types.OrderReport{Kind: types.ReportCancel, OrderID: action.OrderID, Side: action.Side})

			result, err := v.client.CancelOrder(ctx, action.OrderID)
			switch {
			case err == nil && result.Count > 0:
				v.emit(types.OrderReport{Kind: types.ReportCancelled, OrderID: action.OrderID, Side: action.Side})
			case err == nil:
				v.emit(types.OrderReport{
					Kind:    types.ReportCancelFailed,
					OrderID: action.OrderID,
					Side:    action.Side,
					Reason:  "cancel returned 0 orders",
				})
			case strings.Contains(strings.ToLower(err.Error()), "unknown order"):
				// Already terminal on the venue side; treat as a successful cancel.
				v.emit(types.OrderReport{Kind: types.ReportCancelled, OrderID: action.OrderID, Side: action.Side})
			default:
				v.emit(types.OrderReport{
					Kind:    types.ReportVenueError,
					Message: fmt.Sprintf("cancel order %s failed: %v", action.OrderID, err),
				})
			}

		case types.ActionPlace:
			order := action.Order
			v.emit(types.OrderReport{
				Kind:     types.ReportPlaced,
				OrderID:  order.OrderID,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: order.Quantity,
			})

			_, err := v.client.AddOrder(ctx, order.Instrument, order.Side, order.Price, order.Quantity, order.OrderID)
			if err != nil {
				v.emit(types.OrderReport{
					Kind:    types.ReportRejected,
					OrderID: order.OrderID,
					Side:    order.Side,
					Reason:  err.Error(),
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
