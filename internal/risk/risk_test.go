package risk

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
			MinHalfSpread:      0.0,
			MaxOrderNotional:   100,
			MaxExposureInQuote: 200,
		},
	}
}

func freshMarket(bid, ask float64, now time.Time) *types.MarketState {
	var m types.MarketState
	m.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: bid, BestAsk: ask}, now)
	return &m
}

// S4: churn throttle holds a too-soon bid change, then lets it through once
// min_update_interval has elapsed, without mutating state on the throttled
// attempt in between.
func TestChurnThrottleS4(t *testing.T) {
	t.Parallel()

	c := NewChurnThrottleCheck(800 * time.Millisecond)
	instrument := testInstrument()
	t0 := time.Now()

	ctx0 := Context{Instrument: instrument, Target: types.QuoteTarget{Bid: &types.Quote{Price: 100.00, Quantity: 1}}, Now: t0}
	if reasons := c.Evaluate(ctx0); len(reasons) != 0 {
		t.Fatalf("expected first update to record cleanly, got %v", reasons)
	}

	ctx1 := Context{Instrument: instrument, Target: types.QuoteTarget{Bid: &types.Quote{Price: 100.05, Quantity: 1}}, Now: t0.Add(500 * time.Millisecond)}
	reasons := c.Evaluate(ctx1)
	if len(reasons) != 1 || reasons[0].Kind != ChurnThrottleBid {
		t.Fatalf("expected ChurnThrottleBid at 500ms, got %v", reasons)
	}

	// The throttled attempt must not have updated the recorded baseline:
	// the same changed price tried again at 900ms (900ms after the last
	// recorded update at t0) should now succeed.
	ctx2 := Context{Instrument: instrument, Target: types.QuoteTarget{Bid: &types.Quote{Price: 100.05, Quantity: 1}}, Now: t0.Add(900 * time.Millisecond)}
	if reasons := c.Evaluate(ctx2); len(reasons) != 0 {
		t.Fatalf("expected update past min_update_interval to succeed, got %v", reasons)
	}
}

// S5: kill switch forces Rejected with CancelAll regardless of other checks.
func TestKillSwitchS5(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&KillSwitchCheck{Enabled: true}, &MarketSanityCheck{})
	now := time.Now()
	ctx := Context{
		Instrument:  testInstrument(),
		MarketState: freshMarket(100.00, 100.02, now),
		Target:      types.QuoteTarget{Bid: &types.Quote{Price: 100.00, Quantity: 1}},
		Now:         now,
	}

	decision := engine.Evaluate(ctx)
	if decision.Outcome != Rejected {
		t.Fatalf("expected Rejected, got %v", decision.Outcome)
	}
	if len(decision.RequiredActions) != 1 || decision.RequiredActions[0].Kind != types.ActionCancelAll {
		t.Fatalf("expected required_actions=[CancelAll], got %v", decision.RequiredActions)
	}
}

// Any hard reason (MarketFreshnessCheck or MarketSanityCheck) must also
// yield CancelAll, per the cross-check invariant.
func TestMarketSanityFailureYieldsCancelAll(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&MarketSanityCheck{})
	now := time.Now()
	crossed := freshMarket(100.05, 100.00, now) // bid > ask: invalid

	decision := engine.Evaluate(Context{Instrument: testInstrument(), MarketState: crossed, Now: now})
	if decision.Outcome != Rejected {
		t.Fatalf("expected Rejected for crossed book, got %v", decision.Outcome)
	}
	if len(decision.RequiredActions) != 1 || decision.RequiredActions[0].Kind != types.ActionCancelAll {
		t.Fatalf("expected CancelAll, got %v", decision.RequiredActions)
	}
}

func TestMarketFreshnessFailureYieldsCancelAll(t *testing.T) {
	t.Parallel()

	engine := NewEngine(NewMarketFreshnessCheck(time.Second))
	now := time.Now()
	market := freshMarket(100.00, 100.02, now)

	decision := engine.Evaluate(Context{Instrument: testInstrument(), MarketState: market, Now: now.Add(2 * time.Second)})
	if decision.Outcome != Rejected {
		t.Fatalf("expected Rejected for stale market, got %v", decision.Outcome)
	}
	if decision.RequiredActions[0].Kind != types.ActionCancelAll {
		t.Fatal("expected CancelAll action")
	}
}

func TestSoftReasonsHoldWithoutActions(t *testing.T) {
	t.Parallel()

	engine := NewEngine(NewMinEdgeCheck(types.Instrument{TradingRules: types.TradingRules{MinHalfSpread: 1.0}}))
	now := time.Now()
	market := freshMarket(100.00, 100.02, now)

	decision := engine.Evaluate(Context{Instrument: testInstrument(), MarketState: market, Now: now})
	if decision.Outcome != Hold {
		t.Fatalf("expected Hold, got %v", decision.Outcome)
	}
	if len(decision.RequiredActions) != 0 {
		t.Fatal("expected no actions on Hold")
	}
}

func TestExposureLimitCheckSoftRejectsOverCap(t *testing.T) {
	t.Parallel()

	c := NewExposureLimitCheck(200)
	now := time.Now()
	market := freshMarket(100.00, 100.02, now)

	ctx := Context{
		Instrument:  testInstrument(),
		MarketState: market,
		Inventory:   types.Inventory{Base: 10},
		Target:      types.QuoteTarget{Bid: &types.Quote{Price: 100.00, Quantity: 5}},
		Now:         now,
	}
	reasons := c.Evaluate(ctx)
	if len(reasons) != 1 || reasons[0].Kind != ExposureLimit || reasons[0].Side != types.Buy {
		t.Fatalf("expected ExposureLimit on Buy side, got %v", reasons)
	}
}

func TestInventoryAvailableCheckBlocksAskBeyondBase(t *testing.T) {
	t.Parallel()

	c := &InventoryAvailableCheck{}
	ctx := Context{
		Instrument: testInstrument(),
		Inventory:  types.Inventory{Base: 0.5, Quote: 1000},
		Target:     types.QuoteTarget{Ask: &types.Quote{Price: 100.00, Quantity: 1.0}},
	}
	reasons := c.Evaluate(ctx)
	if len(reasons) != 1 || reasons[0].Kind != InsufficientInventory || reasons[0].Side != types.Sell {
		t.Fatalf("expected InsufficientInventory on Sell side, got %v", reasons)
	}
}
