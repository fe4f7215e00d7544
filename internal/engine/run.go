package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"kraken-mm/internal/risk"
	"kraken-mm/internal/scheduling"
	"kraken-mm/pkg/types"
)

// Run starts every background feed under an errgroup, executes
// startupActions against the venue, then blocks in the event loop until ctx
// is cancelled or a feed goroutine returns a fatal error.
func (e *Engine) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return runWithRestart(groupCtx, e.logger, "market feed", e.marketFeed.Run)
	})

	if e.executionFeed != nil {
		group.Go(func() error {
			return runWithRestart(groupCtx, e.logger, "execution feed", e.executionFeed.Run)
		})
		group.Go(func() error {
			return e.forwardExecutionReports(groupCtx)
		})
	}

	if e.balanceFeed != nil {
		group.Go(func() error {
			return runWithRestart(groupCtx, e.logger, "balance feed", e.balanceFeed.Run)
		})
	}

	group.Go(func() error {
		return e.logReports(groupCtx)
	})

	if err := e.venue.Execute(ctx, startupActions); err != nil {
		e.logger.Error("startup actions failed", "error", err)
	}

	group.Go(func() error {
		return e.eventLoop(groupCtx)
	})

	return group.Wait()
}

// runWithRestart restarts run after a 1s backoff whenever it returns a
// non-nil error while the context is still live, so a transient feed
// disconnect doesn't bring down the whole engine.
func runWithRestart(ctx context.Context, logger interface {
	Error(msg string, args ...any)
}, name string, run func(context.Context) error) error {
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Error(name+" stopped with error", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// forwardExecutionReports relays the Kraken execution WS feed's reports onto
// the engine's own report bus, so both real fills and the venue's in-band
// Placed/Cancel/Accepted reports flow through the same subscriber path.
func (e *Engine) forwardExecutionReports(ctx context.Context) error {
	reports := e.executionFeed.Reports()
	for {
		select {
		case <-ctx.Done():
			return nil
		case report, ok := <-reports:
			if !ok {
				return nil
			}
			e.reportBus.Send(report)
		}
	}
}

// logReports subscribes to the report bus purely to log every report,
// mirroring the reference engine's dedicated logging subscriber.
func (e *Engine) logReports(ctx context.Context) error {
	sub := e.reportBus.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if msg.Lagged != nil {
				e.logger.Warn("order report logger lagged; dropped messages", "dropped", msg.Lagged.Dropped)
				continue
			}
			e.logger.Info("order report", "kind", msg.Report.Kind, "order_id", msg.Report.OrderID)
		}
	}
}

// eventLoop is the core decision pipeline: it reacts to order reports
// (feeding the order manager) and market events (market state → signal →
// scheduler → strategy → risk → order manager → venue), exactly as
// described for the single-instrument engine.
func (e *Engine) eventLoop(ctx context.Context) error {
	sub := e.reportBus.Subscribe()
	defer sub.Unsubscribe()

	marketState := &types.MarketState{}
	marketEvents := e.marketFeed.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if msg.Lagged != nil {
				e.logger.Warn("engine lagged on order reports; state may be stale until next report", "dropped", msg.Lagged.Dropped)
				continue
			}
			e.orderManager.OnReport(msg.Report)

		case event, ok := <-marketEvents:
			if !ok {
				return nil
			}
			e.handleMarketEvent(ctx, marketState, event)
		}
	}
}

func (e *Engine) handleMarketEvent(ctx context.Context, marketState *types.MarketState, event types.MarketEvent) {
	now := time.Now()

	marketState.OnMarketEvent(event, now)
	e.signalState.Update(marketState, now)

	scheduleCtx := scheduling.ScheduleContext{
		Now:         now,
		Instrument:  e.instrument,
		MarketState: marketState,
		OrderMgr:    e.orderManager,
	}

	if decision, reason := e.scheduler.Decide(scheduleCtx); decision == scheduling.Skip {
		e.logger.Debug("scheduling skipped", "reason", reason)
		return
	}

	inventory := e.inventoryWatch.Get()

	target, err := e.strategy.ComputeTarget(marketState, e.signalState, inventory)
	if err != nil {
		e.logger.Warn("no quote this tick", "reason", err)
		return
	}

	riskCtx := risk.Context{
		Instrument:  e.instrument,
		MarketState: marketState,
		Target:      target,
		Inventory:   inventory,
		Now:         now,
	}
	decision := e.riskEngine.Evaluate(riskCtx)

	switch decision.Outcome {
	case risk.Approved:
		actions := e.orderManager.ActionsForTarget(e.instrument, decision.Target, now)
		if len(actions) == 0 {
			return
		}
		if err := e.venue.Execute(ctx, actions); err != nil {
			e.logger.Error("venue execute failed", "error", err)
		}

	case risk.Hold:
		e.logger.Info("throttling actions", "reasons", decision.Reasons)

	case risk.Rejected:
		e.logger.Warn("risk rejected quote target", "reasons", decision.Reasons, "required_actions", len(decision.RequiredActions))
		if err := e.venue.Execute(ctx, decision.RequiredActions); err != nil {
			e.logger.Error("venue execute failed", "error", err)
		}
	}
}
