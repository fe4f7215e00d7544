package scenario

import (
	"fmt"
	"log/slog"
	"time"

	"kraken-mm/internal/config"
	"kraken-mm/internal/exchange"
	"kraken-mm/internal/execution"
	"kraken-mm/internal/signal"
	"kraken-mm/internal/strategy"
	"kraken-mm/internal/venue"
	"kraken-mm/pkg/types"
)

// ExecutionVenue builds the venue adapter for kind, wiring it to emit onto
// broadcaster. The Kraken venue additionally needs a signed REST client,
// built from cfg's credentials.
func ExecutionVenue(kind VenueKind, cfg config.Config, broadcaster *execution.ReportBroadcaster, logger *slog.Logger) (venue.Venue, error) {
	logger.Info("creating execution venue", "venue", kind.String())

	switch kind {
	case VenueDryRun:
		return venue.NewDryRun(broadcaster, logger), nil
	case VenueKraken:
		auth, err := exchange.NewAuth(cfg)
		if err != nil {
			return nil, fmt.Errorf("kraken venue: %w", err)
		}
		client := exchange.NewClient(cfg, auth, logger)
		return venue.NewKraken(client, broadcaster, logger), nil
	default:
		return nil, fmt.Errorf("unsupported venue kind: %v", kind)
	}
}

// Strategy builds the quoting strategy for kind, parameterized on instrument.
func Strategy(kind StrategyKind, instrument types.Instrument, logger *slog.Logger) (strategy.Strategy, error) {
	logger.Info("creating strategy", "strategy", kind.String())

	switch kind {
	case StrategySimpleMarketMaker:
		return strategy.NewSimpleMarketMaker(instrument), nil
	case StrategyMeanReversion:
		return strategy.NewMeanReversion(instrument), nil
	default:
		return nil, fmt.Errorf("unsupported strategy kind: %v", kind)
	}
}

// Signals builds the EMA signal state tuned to kind's trading horizon:
// a fast 3s EMA for the tick-reactive simple maker, a slow 60s EMA for the
// mean-reversion strategy's fair-value anchor.
func Signals(kind StrategyKind) *signal.State {
	switch kind {
	case StrategySimpleMarketMaker:
		return signal.NewState(3 * time.Second)
	case StrategyMeanReversion:
		return signal.NewState(60 * time.Second)
	default:
		return signal.NewState(3 * time.Second)
	}
}
