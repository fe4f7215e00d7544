// kraken-mm is an automated, maker-only market-making bot for a single spot
// instrument on Kraken.
//
// Architecture:
//
//	cmd/bot/main.go          — entry point: parses flags, loads config, wires and runs the engine
//	internal/engine          — orchestrator: feeds → market/signal/scheduler/strategy/risk → venue
//	internal/strategy        — quoting strategies (simple-mm, mean-reversion)
//	internal/risk            — ordered risk-check pipeline (kill switch, freshness, sanity, ...)
//	internal/scheduling      — ordered policy pipeline deciding whether to evaluate a tick at all
//	internal/execution       — per-side order lifecycle, report broadcaster, inventory watch
//	internal/exchange        — Kraken REST client + WebSocket feeds (market/executions/balances)
//	internal/venue           — execution venues: DryRun (local) and Kraken (live)
//	internal/scenario        — resolves --venue/--strategy into concrete components
//
// The bot posts maker-only (post-only) limit orders on both sides of the
// book and earns the spread; inventory skew and the risk pipeline keep
// exposure bounded.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kraken-mm/internal/config"
	"kraken-mm/internal/engine"
	"kraken-mm/internal/exchange"
	"kraken-mm/internal/execution"
	"kraken-mm/internal/scenario"
	"kraken-mm/pkg/types"
)

type flags struct {
	venue      string
	strategy   string
	base       string
	quote      string
	configPath string
	logLevel   string
	logFormat  string
	killSwitch bool
}

func main() {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "kraken-mm",
		Short: "Automated maker-only market-making bot for Kraken",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.venue, "venue", "dry-run", "execution venue: dry-run|kraken")
	cmd.Flags().StringVar(&f.strategy, "strategy", "mean-reversion", "quoting strategy: simple-mm|mean-reversion")
	cmd.Flags().StringVar(&f.base, "base", "BTC", "base asset of the traded instrument")
	cmd.Flags().StringVar(&f.quote, "quote", "USD", "quote asset of the traded instrument")
	cmd.Flags().StringVar(&f.configPath, "config", "trading_rules.yml", "path to the trading rules / runtime config file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "json", "log format: json|text")
	cmd.Flags().BoolVar(&f.killSwitch, "kill-switch", false, "start with the kill switch engaged (reject every tick)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("kraken-mm exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags) error {
	logger := newLogger(f.logLevel, f.logFormat)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rules, err := cfg.TradingRulesFor(f.base, f.quote)
	if err != nil {
		return fmt.Errorf("resolve trading rules: %w", err)
	}
	instrument := types.Instrument{Base: f.base, Quote: f.quote, TradingRules: rules}

	venueKind, err := scenario.ParseVenueKind(f.venue)
	if err != nil {
		return err
	}
	strategyKind, err := scenario.ParseStrategyKind(f.strategy)
	if err != nil {
		return err
	}

	reportBus := execution.NewReportBroadcaster()
	inventoryWatch := execution.NewInventoryWatch()

	v, err := scenario.ExecutionVenue(venueKind, *cfg, reportBus, logger)
	if err != nil {
		return fmt.Errorf("create execution venue: %w", err)
	}

	strat, err := scenario.Strategy(strategyKind, instrument, logger)
	if err != nil {
		return fmt.Errorf("create strategy: %w", err)
	}
	signals := scenario.Signals(strategyKind)

	var executionFeed *exchange.ExecutionFeed
	var balanceFeed *exchange.BalanceFeed
	if venueKind == scenario.VenueKraken {
		auth, err := exchange.NewAuth(*cfg)
		if err != nil {
			return fmt.Errorf("kraken auth: %w", err)
		}
		client := exchange.NewClient(*cfg, auth, logger)
		executionFeed = exchange.NewExecutionFeed(client, logger)
		balanceFeed = exchange.NewBalanceFeed(client, instrument, inventoryWatch, logger)
	}

	eng := engine.New(engine.Params{
		Instrument:     instrument,
		Venue:          v,
		Strategy:       strat,
		Signals:        signals,
		ExecutionFeed:  executionFeed,
		BalanceFeed:    balanceFeed,
		ReportBus:      reportBus,
		InventoryWatch: inventoryWatch,
		KillSwitch:     f.killSwitch,
		Logger:         logger,
	})

	logger.Info("kraken-mm started",
		"venue", venueKind.String(),
		"strategy", strategyKind.String(),
		"instrument", instrument.Symbol(),
		"dry_run", cfg.DryRun,
	)

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("engine run: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
