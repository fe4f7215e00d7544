// Package execution turns a desired two-sided quote into venue actions,
// tracking the per-side order lifecycle through optimistic transitions and
// venue execution reports.
package execution

import (
	"kraken-mm/pkg/types"
)

// OrderSideState is a tagged union of the lifecycle of the current working
// order on one side. At most one distinct OrderID is live per side at any
// time; every non-NoOrder state names the order_id that transitions must match.
type OrderSideState struct {
	kind      sideStateKind
	OrderID   string
	Requested types.Quote // valid in Placing
	Resting   types.Quote // valid in Live and Cancelling
}

type sideStateKind int

const (
	StateNoOrder sideStateKind = iota
	StatePlacing
	StateLive
	StateCancelling
)

func (s OrderSideState) Kind() sideStateKind { return s.kind }

func noOrder() OrderSideState { return OrderSideState{kind: StateNoOrder} }

func placing(orderID string, requested types.Quote) OrderSideState {
	return OrderSideState{kind: StatePlacing, OrderID: orderID, Requested: requested}
}

func live(orderID string, resting types.Quote) OrderSideState {
	return OrderSideState{kind: StateLive, OrderID: orderID, Resting: resting}
}

func cancelling(orderID string, resting types.Quote) OrderSideState {
	return OrderSideState{kind: StateCancelling, OrderID: orderID, Resting: resting}
}

// SidePlan is the transient decision record produced by plan() before it is
// turned into concrete OrderActions and applied optimistically.
type SidePlan struct {
	kind       planKind
	OrderID    string
	OldOrderID string
	NewOrderID string
	Desired    types.Quote
}

type planKind int

const (
	PlanNoAction planKind = iota
	PlanWaitForVenue
	PlanPlace
	PlanCancel
	PlanReplace
)

func (p SidePlan) Kind() planKind { return p.kind }
