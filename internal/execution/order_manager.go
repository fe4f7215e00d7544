package execution

import (
	"log/slog"
	"time"

	"kraken-mm/pkg/types"
)

// OrderManager composes the two per-side managers (Buy, Sell) described in
// §4.6. actions_for_target delegates each side's desired quote to its
// manager and concatenates the resulting actions, bid before ask.
type OrderManager struct {
	bid *OrderSideManager
	ask *OrderSideManager
}

// NewOrderManager creates an OrderManager with both sides at NoOrder.
func NewOrderManager(logger *slog.Logger) *OrderManager {
	return &OrderManager{
		bid: NewOrderSideManager(types.Buy, logger),
		ask: NewOrderSideManager(types.Sell, logger),
	}
}

// ActionsForTarget runs both sides' pipelines against target and returns the
// concatenated action list, bid actions before ask actions.
func (om *OrderManager) ActionsForTarget(instrument types.Instrument, target types.QuoteTarget, now time.Time) []types.OrderAction {
	tick := instrument.TradingRules.PriceTick

	bidActions := om.bid.ActionsForTarget(SideInputs{
		Instrument: instrument,
		Now:        now,
		PriceTick:  tick,
		Target:     target.Bid,
	})
	askActions := om.ask.ActionsForTarget(SideInputs{
		Instrument: instrument,
		Now:        now,
		PriceTick:  tick,
		Target:     target.Ask,
	})

	actions := make([]types.OrderAction, 0, len(bidActions)+len(askActions))
	actions = append(actions, bidActions...)
	actions = append(actions, askActions...)
	return actions
}

// OnReport routes a venue execution report to the matching side's manager.
func (om *OrderManager) OnReport(report types.OrderReport) {
	switch report.Side {
	case types.Buy:
		om.bid.OnReport(report)
	case types.Sell:
		om.ask.OnReport(report)
	}
}

// HasLiveOrders reports whether either side currently has a resting order.
func (om *OrderManager) HasLiveOrders() bool {
	return om.bid.HasLiveOrder() || om.ask.HasLiveOrder()
}

// HasInflightActions reports whether either side is waiting on the venue.
func (om *OrderManager) HasInflightActions() bool {
	return om.bid.HasInflightActions() || om.ask.HasInflightActions()
}

// BidState and AskState expose read-only per-side state, e.g. for the
// scheduler's ScheduleContext.
func (om *OrderManager) BidState() OrderSideState { return om.bid.State() }
func (om *OrderManager) AskState() OrderSideState { return om.ask.State() }
