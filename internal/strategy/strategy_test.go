package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"kraken-mm/internal/signal"
	"kraken-mm/pkg/types"
)

func testInstrument() types.Instrument {
	return types.Instrument{
		Base:  "BTC",
		Quote: "USD",
		TradingRules: types.TradingRules{
			PriceTick:          0.01,
			QuantityStep:       0.0001,
			MinHalfSpread:      0.00,
			MaxOrderNotional:   100,
			MaxExposureInQuote: 200,
		},
	}
}

// S1: deviation below the entry threshold produces BelowEntryThreshold.
func TestMeanReversionS1BelowThreshold(t *testing.T) {
	t.Parallel()

	instrument := testInstrument()
	strat := NewMeanReversion(instrument)

	var market types.MarketState
	now := time.Now()
	market.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.02}, now)

	sig := signal.NewState(60 * time.Second).WithMinUpdateInterval(0)
	var emaSeedMarket types.MarketState
	emaSeedMarket.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.00}, now)
	sig.Update(&emaSeedMarket, now)

	var inventory types.Inventory
	_, err := strat.ComputeTarget(&market, sig, inventory)
	if !errors.Is(err, BelowEntryThreshold()) {
		t.Fatalf("expected BelowEntryThreshold, got %v", err)
	}
}

// BelowEntryThreshold constructs a comparable sentinel for errors.Is in tests.
func BelowEntryThreshold() *NoQuoteReason { return belowEntryThreshold(0, 0) }

// S2: deviation clears the threshold; expect an improved, clamped ask.
func TestMeanReversionS2FiresImprove(t *testing.T) {
	t.Parallel()

	instrument := testInstrument()
	strat := NewMeanReversion(instrument)

	var market types.MarketState
	now := time.Now()
	market.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.02}, now)

	sig := signal.NewState(60 * time.Second).WithMinUpdateInterval(0)
	var emaSeedMarket types.MarketState
	emaSeedMarket.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 99.96, BestAsk: 99.96}, now)
	sig.Update(&emaSeedMarket, now)

	var inventory types.Inventory
	target, err := strat.ComputeTarget(&market, sig, inventory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Bid != nil {
		t.Fatal("expected bid absent")
	}
	if target.Ask == nil {
		t.Fatal("expected an ask")
	}
	if math.Abs(float64(target.Ask.Price)-100.01) > 1e-9 {
		t.Errorf("expected ask price 100.01, got %v", target.Ask.Price)
	}
	wantQty := instrument.TradingRules.QuantityFromNotional(100, 99.96)
	if target.Ask.Quantity != wantQty {
		t.Errorf("expected quantity %v, got %v", wantQty, target.Ask.Quantity)
	}
}

func TestMeanReversionMissingTopOfBook(t *testing.T) {
	t.Parallel()

	strat := NewMeanReversion(testInstrument())
	var market types.MarketState
	sig := signal.NewState(60 * time.Second)

	_, err := strat.ComputeTarget(&market, sig, types.Inventory{})
	if !errors.Is(err, MissingTopOfBook) {
		t.Fatalf("expected MissingTopOfBook, got %v", err)
	}
}

func TestMeanReversionTooLongExposureSuppressesBid(t *testing.T) {
	t.Parallel()

	instrument := testInstrument()
	strat := NewMeanReversion(instrument)

	var market types.MarketState
	now := time.Now()
	market.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.02}, now)

	sig := signal.NewState(60 * time.Second).WithMinUpdateInterval(0)
	var emaSeedMarket types.MarketState
	emaSeedMarket.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.06, BestAsk: 100.06}, now)
	sig.Update(&emaSeedMarket, now)

	// deviation = mid(100.01) - ema(100.06) = -0.05 (buy side); exposure too
	// long already (base holding far beyond the cap at this EMA) should
	// suppress the would-be bid.
	inventory := types.Inventory{Base: 10000}

	_, err := strat.ComputeTarget(&market, sig, inventory)
	if !errors.Is(err, tooLongExposureSentinel()) {
		t.Fatalf("expected TooLongExposure, got %v", err)
	}
}

func tooLongExposureSentinel() *NoQuoteReason { return tooLongExposure(0, 0) }

func TestSimpleMarketMakerQuotesBothSides(t *testing.T) {
	t.Parallel()

	instrument := testInstrument()
	strat := NewSimpleMarketMaker(instrument)

	var market types.MarketState
	now := time.Now()
	market.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.02}, now)

	sig := signal.NewState(3 * time.Second).WithMinUpdateInterval(0)
	sig.Update(&market, now)

	target, err := strat.ComputeTarget(&market, sig, types.Inventory{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Bid == nil || target.Ask == nil {
		t.Fatalf("expected both sides quoted with flat inventory, got %+v", target)
	}
	if float64(target.Bid.Price) > float64(target.Ask.Price)-instrument.TradingRules.PriceTick+1e-9 {
		t.Errorf("post-only invariant violated: bid %v ask %v", target.Bid.Price, target.Ask.Price)
	}
}

func TestSimpleMarketMakerSuppressesLongSideOverExposure(t *testing.T) {
	t.Parallel()

	instrument := testInstrument()
	strat := NewSimpleMarketMaker(instrument)

	var market types.MarketState
	now := time.Now()
	market.OnMarketEvent(types.MarketEvent{Kind: types.EventTopOfBook, BestBid: 100.00, BestAsk: 100.02}, now)

	sig := signal.NewState(3 * time.Second).WithMinUpdateInterval(0)
	sig.Update(&market, now)

	inventory := types.Inventory{Base: 10000}
	target, err := strat.ComputeTarget(&market, sig, inventory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Bid != nil {
		t.Fatal("expected bid suppressed when already too long")
	}
	if target.Ask == nil {
		t.Fatal("expected ask still quoted")
	}
}
