package strategy

import (
	"math"

	"kraken-mm/internal/signal"
	"kraken-mm/pkg/types"
)

// MeanReversion quotes one side only, betting that mid reverts toward the
// slower EMA anchor once it has stretched far enough away from it.
type MeanReversion struct {
	ctx Context

	EntryThresholdTicks float64
	MaxExposureQuote    float64
	ImproveIfPossible   bool
}

// NewMeanReversion builds the strategy with the reference engine's defaults.
func NewMeanReversion(instrument types.Instrument) *MeanReversion {
	return &MeanReversion{
		ctx:                 Context{Instrument: instrument},
		EntryThresholdTicks: 3.0,
		MaxExposureQuote:    200.0,
		ImproveIfPossible:   true,
	}
}

func (s *MeanReversion) ComputeTarget(market *types.MarketState, sig *signal.State, inventory types.Inventory) (types.QuoteTarget, error) {
	bestBid, bestAsk, err := bestBidAsk(market)
	if err != nil {
		return types.QuoteTarget{}, err
	}

	mid, ok := market.MidPrice()
	if !ok {
		return types.QuoteTarget{}, MissingMid
	}

	ema, ok := sig.EmaMid()
	if !ok {
		return types.QuoteTarget{}, MissingEma
	}

	tick := s.ctx.tick()
	deviation := mid - ema
	deviationAbs := math.Abs(deviation)
	thresholdAbs := s.EntryThresholdTicks * tick

	if deviationAbs < thresholdAbs {
		return types.QuoteTarget{}, belowEntryThreshold(deviationAbs/tick, s.EntryThresholdTicks)
	}

	exposureQuote := inventory.Base * ema
	if deviation > 0 && exposureQuote < -s.MaxExposureQuote {
		return types.QuoteTarget{}, tooShortExposure(exposureQuote, s.MaxExposureQuote)
	}
	if deviation < 0 && exposureQuote > s.MaxExposureQuote {
		return types.QuoteTarget{}, tooLongExposure(exposureQuote, s.MaxExposureQuote)
	}

	quantity, err := s.ctx.sizeFromNotional(ema)
	if err != nil {
		return types.QuoteTarget{}, err
	}

	// The 1e-12 slack absorbs float error: 100.02-100.00 is 0.0199999...,
	// which still counts as a two-tick spread.
	spread := bestAsk - bestBid
	canImprove := s.ImproveIfPossible && spread >= 2*tick-1e-12

	if deviation > 0 {
		desiredAsk := bestAsk
		if canImprove {
			desiredAsk = bestAsk - tick
		}
		desiredAsk = s.ctx.clampAsk(desiredAsk, bestBid)
		if desiredAsk < bestBid+tick {
			return types.QuoteTarget{}, WouldCrossPostOnly
		}
		price := types.Price(s.ctx.rules().RoundPriceToTick(desiredAsk))
		return types.QuoteTarget{Ask: &types.Quote{Price: price, Quantity: quantity}}, nil
	}

	desiredBid := bestBid
	if canImprove {
		desiredBid = bestBid + tick
	}
	desiredBid = s.ctx.clampBid(desiredBid, bestAsk)
	if desiredBid > bestAsk-tick {
		return types.QuoteTarget{}, WouldCrossPostOnly
	}
	price := types.Price(s.ctx.rules().RoundPriceToTick(desiredBid))
	return types.QuoteTarget{Bid: &types.Quote{Price: price, Quantity: quantity}}, nil
}
