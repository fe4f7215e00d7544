// Package engine is the central orchestrator of the market-making bot.
//
// It wires together all subsystems for a single traded instrument:
//
//  1. Three background feeds (market data, executions, balances) publish
//     onto bounded channels, supervised by an errgroup.
//  2. The event loop reacts to order reports (feeding the order manager)
//     and market events (feeding the market/signal/scheduler/strategy/risk
//     pipeline in that order).
//  3. A risk-approved or risk-rejected tick turns into venue actions,
//     executed through the configured Venue.
//
// Lifecycle: New() wires the pipeline; Run(ctx) starts the feeds and blocks
// in the event loop until ctx is cancelled or a feed fails fatally.
package engine

import (
	"log/slog"
	"time"

	"kraken-mm/internal/exchange"
	"kraken-mm/internal/execution"
	"kraken-mm/internal/risk"
	"kraken-mm/internal/scheduling"
	"kraken-mm/internal/signal"
	"kraken-mm/internal/strategy"
	"kraken-mm/internal/venue"
	"kraken-mm/pkg/types"
)

const (
	marketFreshnessWindow = 3 * time.Second
	churnThrottleInterval = 800 * time.Millisecond
	minPlacementInterval  = 200 * time.Millisecond
	tickMoveThreshold     = 1.0
)

// startupActions run once, before the event loop starts, so the engine
// never inherits resting orders left behind by a previous, uncleanly
// stopped run.
var startupActions = []types.OrderAction{types.CancelAllAction()}

// Engine is the single-instrument orchestrator: it owns the feeds, the
// decision pipeline, and the venue the pipeline's actions execute against.
type Engine struct {
	instrument types.Instrument
	venue      venue.Venue

	marketFeed     *exchange.MarketFeed
	executionFeed  *exchange.ExecutionFeed
	balanceFeed    *exchange.BalanceFeed
	reportBus      *execution.ReportBroadcaster
	inventoryWatch *execution.InventoryWatch

	orderManager *execution.OrderManager
	strategy     strategy.Strategy
	signalState  *signal.State
	riskEngine   *risk.Engine
	scheduler    *scheduling.Scheduler

	killSwitch *risk.KillSwitchCheck

	logger *slog.Logger
}

// Params bundles everything New needs to wire an Engine for one instrument.
// ReportBus and InventoryWatch are constructed by the caller (cmd/bot) since
// the venue and balance feed must already be wired to them before the
// engine itself is built.
type Params struct {
	Instrument     types.Instrument
	Venue          venue.Venue
	Strategy       strategy.Strategy
	Signals        *signal.State
	ExecutionFeed  *exchange.ExecutionFeed
	BalanceFeed    *exchange.BalanceFeed
	ReportBus      *execution.ReportBroadcaster
	InventoryWatch *execution.InventoryWatch
	KillSwitch     bool
	Logger         *slog.Logger
}

// New wires the full decision pipeline: order manager, the required risk
// check pipeline (kill switch, freshness, sanity, churn throttle, min edge,
// exposure limit, inventory availability), and the scheduler policy chain.
// The first five checks follow the reference engine's order; the exposure
// and inventory checks are appended after min edge.
func New(p Params) *Engine {
	logger := p.Logger.With("component", "engine", "instrument", p.Instrument.Symbol())

	killSwitch := &risk.KillSwitchCheck{Enabled: p.KillSwitch}

	riskEngine := risk.NewEngine(
		killSwitch,
		risk.NewMarketFreshnessCheck(marketFreshnessWindow),
		&risk.MarketSanityCheck{},
		risk.NewChurnThrottleCheck(churnThrottleInterval),
		risk.NewMinEdgeCheck(p.Instrument),
		risk.NewExposureLimitCheck(p.Instrument.TradingRules.MaxExposureInQuote),
		&risk.InventoryAvailableCheck{},
	)

	scheduler := scheduling.NewScheduler(
		scheduling.InFlightPolicy{},
		scheduling.NewTopOfBookTickMovePolicy(tickMoveThreshold),
		scheduling.NewTradingHoursPolicy(),
		scheduling.NewMinIntervalPolicy(minPlacementInterval),
	)

	return &Engine{
		instrument:     p.Instrument,
		venue:          p.Venue,
		marketFeed:     exchange.NewMarketFeed(p.Instrument, logger),
		executionFeed:  p.ExecutionFeed,
		balanceFeed:    p.BalanceFeed,
		reportBus:      p.ReportBus,
		inventoryWatch: p.InventoryWatch,
		orderManager:   execution.NewOrderManager(logger),
		strategy:       p.Strategy,
		signalState:    p.Signals,
		riskEngine:     riskEngine,
		scheduler:      scheduler,
		killSwitch:     killSwitch,
		logger:         logger,
	}
}

// SetKillSwitch flips the engine's kill switch, rejecting every subsequent
// tick until cleared. The flag is a plain field read by the event loop;
// the write is not synchronized with a concurrently running Run.
func (e *Engine) SetKillSwitch(enabled bool) {
	e.killSwitch.Enabled = enabled
}
