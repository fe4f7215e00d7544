// Package types defines the shared vocabulary of the market-making core:
// prices, quotes, instruments, inventory, market state, and the order
// lifecycle types exchanged between the core and a venue adapter.
package types

import (
	"fmt"
	"math"
	"time"
)

// Side is which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Price is a non-negative finite scalar in quote currency.
type Price float64

// Valid reports whether p is finite and non-negative.
func (p Price) Valid() bool {
	return !math.IsNaN(float64(p)) && !math.IsInf(float64(p), 0) && p >= 0
}

// Sub returns the signed delta p - other.
func (p Price) Sub(other Price) float64 {
	return float64(p) - float64(other)
}

// Add returns p shifted by delta.
func (p Price) Add(delta float64) Price {
	return Price(float64(p) + delta)
}

// Quote is a resting price/quantity pair. Quantity must be > 0.
type Quote struct {
	Price    Price
	Quantity float64
}

// QuoteTarget is the two-sided desired quote a strategy produces for a tick.
// Either side may be absent.
type QuoteTarget struct {
	Bid *Quote
	Ask *Quote
}

// TradingHours restricts quoting to a UTC hour window, optionally pausing
// over the weekend. The window may wrap midnight (StartHour > EndHour).
type TradingHours struct {
	StartHour    int
	EndHour      int
	WeekendPause bool
}

// Active reports whether t falls inside the configured trading window.
func (h TradingHours) Active(t time.Time) bool {
	t = t.UTC()
	if h.WeekendPause {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}
	hour := t.Hour()
	if h.StartHour == h.EndHour {
		return true
	}
	if h.StartHour < h.EndHour {
		return hour >= h.StartHour && hour < h.EndHour
	}
	// Wraps midnight: e.g. start=22, end=4 → active at 22,23,0,1,2,3.
	return hour >= h.StartHour || hour < h.EndHour
}

// TradingRules carries the per-instrument constants that govern rounding,
// sizing, and risk ceilings. All fields besides MinHalfSpread and
// TradingHours must be strictly positive.
type TradingRules struct {
	PriceTick          float64
	QuantityStep       float64
	MinHalfSpread      float64
	MaxOrderNotional   float64
	MaxExposureInQuote float64
	TradingHours       *TradingHours
}

// Validate checks that all required fields are positive and well-formed.
func (r TradingRules) Validate() error {
	if r.PriceTick <= 0 {
		return fmt.Errorf("price_tick must be > 0, got %v", r.PriceTick)
	}
	if r.QuantityStep <= 0 {
		return fmt.Errorf("quantity_step must be > 0, got %v", r.QuantityStep)
	}
	if r.MinHalfSpread < 0 {
		return fmt.Errorf("min_half_spread must be >= 0, got %v", r.MinHalfSpread)
	}
	if r.MaxOrderNotional <= 0 {
		return fmt.Errorf("max_order_notional must be > 0, got %v", r.MaxOrderNotional)
	}
	if r.MaxExposureInQuote <= 0 {
		return fmt.Errorf("max_exposure_in_quote must be > 0, got %v", r.MaxExposureInQuote)
	}
	return nil
}

// RoundPriceToTick rounds p down to the nearest PriceTick.
func (r TradingRules) RoundPriceToTick(p float64) float64 {
	if r.PriceTick <= 0 {
		return p
	}
	return math.Floor(p/r.PriceTick) * r.PriceTick
}

// QuantityFromNotional returns the largest multiple of QuantityStep whose
// notional at price p does not exceed notional n. Returns 0 when p is
// non-positive or non-finite.
func (r TradingRules) QuantityFromNotional(n, p float64) float64 {
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	if r.QuantityStep <= 0 {
		return 0
	}
	raw := n / p
	steps := math.Floor(raw / r.QuantityStep)
	if steps < 0 {
		return 0
	}
	return steps * r.QuantityStep
}

// Instrument is the triple (base, quote, trading_rules) the engine trades.
type Instrument struct {
	Base         string
	Quote        string
	TradingRules TradingRules
}

// Symbol returns the "BASE_QUOTE" key trading rules are keyed by.
func (i Instrument) Symbol() string {
	return i.Base + "_" + i.Quote
}

// Inventory is an externally owned, read-only-to-the-core snapshot of
// signed base/quote holdings.
type Inventory struct {
	Base  float64
	Quote float64
}

// ExposureQuote returns the signed quote-currency value of the base position.
func (inv Inventory) ExposureQuote(mid float64) float64 {
	return inv.Base * mid
}

// MtmQuote returns mark-to-market value in quote currency.
func (inv Inventory) MtmQuote(mid float64) float64 {
	return inv.Quote + inv.Base*mid
}

// MarketEventKind distinguishes the two event shapes the adapter emits.
type MarketEventKind int

const (
	EventTopOfBook MarketEventKind = iota
	EventTrade
)

// MarketEvent is what a market-data adapter publishes on the market channel.
// Timestamps are milliseconds since Unix epoch; the core ignores them for
// freshness and stamps its own receive-time instead.
type MarketEvent struct {
	Kind     MarketEventKind
	BestBid  float64 // valid when Kind == EventTopOfBook
	BestAsk  float64 // valid when Kind == EventTopOfBook
	Price    float64 // valid when Kind == EventTrade
	Quantity float64 // valid when Kind == EventTrade
	TsMillis int64
}

// MarketState is the process-singleton view of top-of-book and last trade,
// mutated only by the event loop via OnMarketEvent. No validity filtering is
// performed here; sanity is enforced by the risk layer.
type MarketState struct {
	bestBid          *float64
	bestAsk          *float64
	lastTradePrice   *float64
	lastEventInstant time.Time
}

// OnMarketEvent applies e, stamping LastEventInstant to now regardless of kind.
func (m *MarketState) OnMarketEvent(e MarketEvent, now time.Time) {
	switch e.Kind {
	case EventTopOfBook:
		bid, ask := e.BestBid, e.BestAsk
		m.bestBid = &bid
		m.bestAsk = &ask
	case EventTrade:
		p := e.Price
		m.lastTradePrice = &p
	}
	m.lastEventInstant = now
}

func (m *MarketState) BestBid() (float64, bool) {
	if m.bestBid == nil {
		return 0, false
	}
	return *m.bestBid, true
}

func (m *MarketState) BestAsk() (float64, bool) {
	if m.bestAsk == nil {
		return 0, false
	}
	return *m.bestAsk, true
}

func (m *MarketState) LastTradePrice() (float64, bool) {
	if m.lastTradePrice == nil {
		return 0, false
	}
	return *m.lastTradePrice, true
}

// MidPrice returns (bestBid+bestAsk)/2 when both sides are present.
func (m *MarketState) MidPrice() (float64, bool) {
	bid, ok := m.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := m.BestAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Spread returns bestAsk-bestBid when both sides are present.
func (m *MarketState) Spread() (float64, bool) {
	bid, ok := m.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := m.BestAsk()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// IsStale reports whether no market event has been observed within d, or
// none has ever been observed at all.
func (m *MarketState) IsStale(d time.Duration, now time.Time) bool {
	if m.lastEventInstant.IsZero() {
		return true
	}
	return now.Sub(m.lastEventInstant) > d
}

// LastEventInstant returns the timestamp of the last applied market event.
func (m *MarketState) LastEventInstant() time.Time {
	return m.lastEventInstant
}
