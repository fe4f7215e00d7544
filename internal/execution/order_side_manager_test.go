package execution

import (
	"testing"
	"time"

	"kraken-mm/pkg/types"
)

func testInstrument() types.Instrument {
	return types.Instrument{
		Base:  "BTC",
		Quote: "USD",
		TradingRules: types.TradingRules{
			PriceTick:          0.01,
			QuantityStep:       0.0001,
			MinHalfSpread:      0,
			MaxOrderNotional:   100,
			MaxExposureInQuote: 200,
		},
	}
}

func TestNoOrderPlacesOnDesired(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	now := time.Now()
	target := types.Quote{Price: 100.00, Quantity: 1.0}

	actions := m.ActionsForTarget(SideInputs{Instrument: testInstrument(), Now: now, PriceTick: 0.01, Target: &target})

	if len(actions) != 1 || actions[0].Kind != types.ActionPlace {
		t.Fatalf("expected a single Place action, got %+v", actions)
	}
	if m.State().Kind() != StatePlacing {
		t.Fatalf("expected optimistic state Placing, got %v", m.State().Kind())
	}
}

// S3 (Replace on drift).
func TestReplaceOnDrift(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	past := time.Now().Add(-600 * time.Millisecond)
	m.state = live("A", types.Quote{Price: 100.05, Quantity: 1.0})
	m.lastUpdate = &past

	now := time.Now()
	desired := types.Quote{Price: 100.08, Quantity: 1.0}
	actions := m.ActionsForTarget(SideInputs{Instrument: testInstrument(), Now: now, PriceTick: 0.01, Target: &desired})

	if len(actions) != 2 {
		t.Fatalf("expected [Cancel, Place], got %d actions", len(actions))
	}
	if actions[0].Kind != types.ActionCancel || actions[0].OrderID != "A" {
		t.Fatalf("expected Cancel(A) first, got %+v", actions[0])
	}
	if actions[1].Kind != types.ActionPlace || actions[1].OrderID == "A" {
		t.Fatalf("expected Place(new_id != A) second, got %+v", actions[1])
	}
	if m.State().Kind() != StatePlacing || m.State().OrderID != actions[1].OrderID {
		t.Fatalf("expected optimistic state Placing{new_id}, got %+v", m.State())
	}
}

func TestIsStaleQuantityBoundary(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	past := time.Now().Add(-time.Second)
	m.lastUpdate = &past

	current := types.Quote{Price: 100.00, Quantity: 1.0}
	desired := types.Quote{Price: 100.00, Quantity: 1.0 + 1e-12}

	if m.isStale(current, desired, time.Now(), 0.01) {
		t.Fatal("expected |diff| = 1e-12 to be strictly not-stale")
	}
}

func TestIsStaleMinLifetimeBoundary(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	start := time.Now()
	m.lastUpdate = &start

	current := types.Quote{Price: 100.00, Quantity: 1.0}
	desired := types.Quote{Price: 100.10, Quantity: 1.0} // 10 ticks away, over replace_threshold_ticks=3

	// Strictly under min_lifetime: the lifetime gate short-circuits to false
	// even though the drift alone would otherwise trigger a replace.
	if m.isStale(current, desired, start.Add(m.policy.MinLifetime-time.Millisecond), 0.01) {
		t.Fatal("expected now - last_update < min_lifetime to short-circuit to not-stale")
	}

	// Exactly at min_lifetime: the gate condition "< min_lifetime" is false,
	// so staleness falls through to the tick-drift check, which fires.
	if !m.isStale(current, desired, start.Add(m.policy.MinLifetime), 0.01) {
		t.Fatal("expected now - last_update == min_lifetime to no longer be gated by lifetime")
	}
}

// S6 (PartialFill).
func TestPartialFillThenNoActionWithinLifetime(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	m.state = live("A", types.Quote{Price: 100.00, Quantity: 1.0})
	start := time.Now()
	m.lastUpdate = &start

	m.OnReport(types.OrderReport{Kind: types.ReportPartiallyFilled, OrderID: "A", Side: types.Buy, CumQuantity: 0.3})

	if m.state.Kind() != StateLive || m.state.Resting.Quantity != 0.7 {
		t.Fatalf("expected Live{A, qty=0.7}, got %+v", m.state)
	}

	desired := types.Quote{Price: 100.00, Quantity: 0.7}
	actions := m.ActionsForTarget(SideInputs{Instrument: testInstrument(), Now: start.Add(10 * time.Millisecond), PriceTick: 0.01, Target: &desired})
	if len(actions) != 0 {
		t.Fatalf("expected NoAction within min_lifetime, got %+v", actions)
	}
}

func TestFilledReturnsToNoOrder(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Sell, nil)
	m.state = live("A", types.Quote{Price: 100.00, Quantity: 1.0})
	now := time.Now()
	m.lastUpdate = &now

	m.OnReport(types.OrderReport{Kind: types.ReportFilled, OrderID: "A", Side: types.Sell})

	if m.state.Kind() != StateNoOrder {
		t.Fatalf("expected NoOrder after Filled, got %v", m.state.Kind())
	}
	if m.lastUpdate != nil {
		t.Fatal("expected last_update cleared after Filled")
	}
}

func TestCancelledMatchesCurrentOrderOnly(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	m.state = live("A", types.Quote{Price: 100.00, Quantity: 1.0})

	// A report for a stale/unknown id must be ignored.
	m.OnReport(types.OrderReport{Kind: types.ReportCancelled, OrderID: "stale-id", Side: types.Buy})
	if m.state.Kind() != StateLive {
		t.Fatalf("expected unrelated Cancelled to be ignored, got %v", m.state.Kind())
	}

	m.OnReport(types.OrderReport{Kind: types.ReportCancelled, OrderID: "A", Side: types.Buy})
	if m.state.Kind() != StateNoOrder {
		t.Fatalf("expected matching Cancelled to return NoOrder, got %v", m.state.Kind())
	}
}

func TestInFlightStatesWaitForVenue(t *testing.T) {
	t.Parallel()

	m := NewOrderSideManager(types.Buy, nil)
	m.state = placing("A", types.Quote{Price: 100.00, Quantity: 1.0})

	desired := types.Quote{Price: 105.00, Quantity: 1.0}
	actions := m.ActionsForTarget(SideInputs{Instrument: testInstrument(), Now: time.Now(), PriceTick: 0.01, Target: &desired})
	if len(actions) != 0 {
		t.Fatalf("expected no actions while Placing, got %+v", actions)
	}
	if !m.HasInflightActions() {
		t.Fatal("expected HasInflightActions to be true while Placing")
	}
}
