package execution

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"kraken-mm/pkg/types"
)

// ReplacePolicy tunes when a Live order is considered stale enough to replace.
type ReplacePolicy struct {
	ReplaceThresholdTicks int64
	MinLifetime           time.Duration
}

// DefaultReplacePolicy matches the reference engine's defaults.
func DefaultReplacePolicy() ReplacePolicy {
	return ReplacePolicy{
		ReplaceThresholdTicks: 3,
		MinLifetime:           500 * time.Millisecond,
	}
}

// SideInputs bundles the read-only context a side manager needs to plan.
type SideInputs struct {
	Instrument types.Instrument
	Now        time.Time
	PriceTick  float64
	Target     *types.Quote // nil means "no desired quote"
}

// OrderSideManager is the per-side state machine described in §4.6: it turns
// a desired quote into place/cancel/replace actions and reconciles state
// against venue execution reports.
type OrderSideManager struct {
	side       types.Side
	state      OrderSideState
	lastUpdate *time.Time
	policy     ReplacePolicy
	logger     *slog.Logger
}

// NewOrderSideManager creates a manager for one side, starting at NoOrder.
func NewOrderSideManager(side types.Side, logger *slog.Logger) *OrderSideManager {
	return &OrderSideManager{
		side:   side,
		state:  noOrder(),
		policy: DefaultReplacePolicy(),
		logger: logger,
	}
}

// HasInflightActions reports whether this side is waiting on the venue.
func (m *OrderSideManager) HasInflightActions() bool {
	switch m.state.Kind() {
	case StatePlacing, StateCancelling:
		return true
	default:
		return false
	}
}

// HasLiveOrder reports whether this side currently has a resting order.
func (m *OrderSideManager) HasLiveOrder() bool {
	return m.state.Kind() == StateLive
}

// State returns the current side state, for read-only inspection (e.g. by
// OrderManager.BidState/AskState).
func (m *OrderSideManager) State() OrderSideState {
	return m.state
}

// OnReport reconciles state against a venue execution report. Reports whose
// side does not match this manager are ignored by the caller (OrderManager),
// not here, mirroring the reference engine's per-side dispatch.
func (m *OrderSideManager) OnReport(report types.OrderReport) {
	switch report.Kind {
	case types.ReportPlaced:
		m.state = placing(report.OrderID, types.Quote{Price: report.Price, Quantity: report.Quantity})

	case types.ReportAccepted:
		m.state = live(report.OrderID, types.Quote{Price: report.Price, Quantity: report.Quantity})
		now := time.Now()
		m.lastUpdate = &now

	case types.ReportRejected:
		if m.matchesCurrentOrder(report.OrderID) {
			m.state = noOrder()
			m.lastUpdate = nil
		}

	case types.ReportCancel:
		if m.state.Kind() == StateLive && m.state.OrderID == report.OrderID {
			m.state = cancelling(report.OrderID, m.state.Resting)
		}

	case types.ReportCancelled:
		if m.matchesCurrentOrder(report.OrderID) {
			m.state = noOrder()
			m.lastUpdate = nil
		}

	case types.ReportPartiallyFilled:
		if m.state.Kind() == StateLive && m.state.OrderID == report.OrderID {
			remaining := m.state.Resting.Quantity - report.CumQuantity
			if remaining < 0 {
				remaining = 0
			}
			resting := types.Quote{Price: m.state.Resting.Price, Quantity: remaining}
			m.state = live(report.OrderID, resting)
			now := time.Now()
			m.lastUpdate = &now
			if m.logger != nil {
				m.logger.Info("order partially filled",
					"side", m.side, "order_id", report.OrderID,
					"fill_quantity", report.CumQuantity, "remaining_quantity", remaining)
			}
		}

	case types.ReportFilled:
		if m.matchesCurrentOrder(report.OrderID) {
			if m.logger != nil {
				m.logger.Info("order filled", "side", m.side, "order_id", report.OrderID)
			}
			m.state = noOrder()
			m.lastUpdate = nil
		}

	default:
		// CancelFailed, CancelledAll, VenueError: no per-side state change.
	}
}

func (m *OrderSideManager) matchesCurrentOrder(orderID string) bool {
	switch m.state.Kind() {
	case StatePlacing, StateLive, StateCancelling:
		return m.state.OrderID == orderID
	default:
		return false
	}
}

// ActionsForTarget runs the full per-side pipeline: plan, materialize
// actions, then optimistically advance state as if the venue accepted them.
func (m *OrderSideManager) ActionsForTarget(inputs SideInputs) []types.OrderAction {
	plan := m.plan(inputs)
	actions := m.getActions(inputs.Instrument, plan)
	m.applyOptimistic(plan, inputs.Now)
	return actions
}

func (m *OrderSideManager) plan(inputs SideInputs) SidePlan {
	switch m.state.Kind() {
	case StateNoOrder:
		if inputs.Target == nil {
			return SidePlan{kind: PlanNoAction}
		}
		return SidePlan{kind: PlanPlace, NewOrderID: m.generateOrderID(), Desired: *inputs.Target}

	case StatePlacing, StateCancelling:
		return SidePlan{kind: PlanWaitForVenue}

	case StateLive:
		if inputs.Target == nil {
			return SidePlan{kind: PlanCancel, OrderID: m.state.OrderID}
		}
		if m.isStale(m.state.Resting, *inputs.Target, inputs.Now, inputs.PriceTick) {
			return SidePlan{
				kind:       PlanReplace,
				OldOrderID: m.state.OrderID,
				NewOrderID: m.generateOrderID(),
				Desired:    *inputs.Target,
			}
		}
		return SidePlan{kind: PlanNoAction}

	default:
		return SidePlan{kind: PlanNoAction}
	}
}

func (m *OrderSideManager) isStale(current, desired types.Quote, now time.Time, priceTick float64) bool {
	if m.lastUpdate != nil && now.Sub(*m.lastUpdate) < m.policy.MinLifetime {
		return false
	}

	currentTicks := priceToTicks(float64(current.Price), priceTick)
	desiredTicks := priceToTicks(float64(desired.Price), priceTick)
	diffTicks := currentTicks - desiredTicks
	if diffTicks < 0 {
		diffTicks = -diffTicks
	}

	if math.Abs(current.Quantity-desired.Quantity) > 1e-12 {
		return true
	}
	if diffTicks >= m.policy.ReplaceThresholdTicks {
		return true
	}
	return false
}

func (m *OrderSideManager) getActions(instrument types.Instrument, plan SidePlan) []types.OrderAction {
	switch plan.Kind() {
	case PlanPlace:
		return []types.OrderAction{m.placeAction(plan.NewOrderID, instrument, plan.Desired)}
	case PlanCancel:
		return []types.OrderAction{types.CancelAction(plan.OrderID, instrument, m.side)}
	case PlanReplace:
		return []types.OrderAction{
			types.CancelAction(plan.OldOrderID, instrument, m.side),
			m.placeAction(plan.NewOrderID, instrument, plan.Desired),
		}
	default:
		return nil
	}
}

func (m *OrderSideManager) placeAction(orderID string, instrument types.Instrument, desired types.Quote) types.OrderAction {
	return types.PlaceAction(types.Order{
		OrderID:    orderID,
		Instrument: instrument,
		Side:       m.side,
		Price:      desired.Price,
		Quantity:   desired.Quantity,
		OrderType:  types.PostOnlyLimit,
	})
}

// applyOptimistic advances state as if the venue accepted the plan, so
// concurrent scheduling and subsequent ticks observe pending intent before
// any report arrives.
func (m *OrderSideManager) applyOptimistic(plan SidePlan, now time.Time) {
	switch plan.Kind() {
	case PlanNoAction, PlanWaitForVenue:
		return

	case PlanPlace:
		if m.state.Kind() == StateNoOrder {
			m.state = placing(plan.NewOrderID, plan.Desired)
			m.lastUpdate = &now
		}

	case PlanCancel:
		if m.state.Kind() == StateLive {
			m.state = cancelling(plan.OrderID, m.state.Resting)
			m.lastUpdate = &now
		}

	case PlanReplace:
		// Rationale (§4.6): the old order is treated as about to die; the
		// new one is expected to appear. Cancel + place immediately, no
		// intermediate Cancelling state.
		m.state = placing(plan.NewOrderID, plan.Desired)
		m.lastUpdate = &now
	}
}

func (m *OrderSideManager) generateOrderID() string {
	return uuid.NewString()
}

func priceToTicks(price, tick float64) int64 {
	if tick <= 0 {
		return 0
	}
	return int64(math.Round(price / tick))
}
