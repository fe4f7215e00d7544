package strategy

import (
	"math"

	"kraken-mm/internal/signal"
	"kraken-mm/pkg/types"
)

// SimpleMarketMaker quotes both sides around a fair price skewed away from
// current inventory, suppressing whichever side would push exposure further
// past its cap.
type SimpleMarketMaker struct {
	ctx Context

	MaxExposureQuote float64
	MaxSkewBps       float64
}

// NewSimpleMarketMaker builds the strategy with the reference engine's
// defaults.
func NewSimpleMarketMaker(instrument types.Instrument) *SimpleMarketMaker {
	return &SimpleMarketMaker{
		ctx:              Context{Instrument: instrument},
		MaxExposureQuote: 200.0,
		MaxSkewBps:       10.0,
	}
}

func (s *SimpleMarketMaker) ComputeTarget(market *types.MarketState, sig *signal.State, inventory types.Inventory) (types.QuoteTarget, error) {
	bestBid, bestAsk, err := bestBidAsk(market)
	if err != nil {
		return types.QuoteTarget{}, err
	}

	tick := s.ctx.tick()

	fair, err := fairPrice(market, sig)
	if err != nil {
		return types.QuoteTarget{}, err
	}

	exposureQuote := inventory.Base * fair
	denom := math.Max(s.MaxExposureQuote, 1e-12)
	norm := clampf(exposureQuote/denom, -1, 1)

	skewBps := norm * s.MaxSkewBps
	skew := fair * (skewBps / 10_000.0)
	skewedFair := fair - skew

	quantity, err := s.ctx.sizeFromNotional(skewedFair)
	if err != nil {
		return types.QuoteTarget{}, err
	}

	tooLong := exposureQuote > s.MaxExposureQuote
	tooShort := exposureQuote < -s.MaxExposureQuote

	spread := bestAsk - bestBid
	canImprove := spread >= 2*tick

	mid := 0.5 * (bestBid + bestAsk)
	fairBias := signum(skewedFair - mid)

	desiredBid := bestBid
	if !tooLong && fairBias > 0 && canImprove {
		desiredBid = bestBid + tick
	}
	desiredBid = s.ctx.clampBid(desiredBid, bestAsk)

	desiredAsk := bestAsk
	if !tooShort && fairBias < 0 && canImprove {
		desiredAsk = bestAsk - tick
	}
	desiredAsk = s.ctx.clampAsk(desiredAsk, bestBid)

	halfSpreadFloor := s.ctx.rules().MinHalfSpread
	bidFloorFromFair := skewedFair - halfSpreadFloor
	askFloorFromFair := skewedFair + halfSpreadFloor

	desiredBid = math.Max(desiredBid, bidFloorFromFair)
	desiredBid = s.ctx.clampBid(desiredBid, bestAsk)

	desiredAsk = math.Min(desiredAsk, askFloorFromFair)
	desiredAsk = s.ctx.clampAsk(desiredAsk, bestBid)

	if desiredBid > bestAsk-tick || desiredAsk < bestBid+tick {
		return types.QuoteTarget{}, WouldCrossPostOnly
	}

	bidPrice := types.Price(s.ctx.rules().RoundPriceToTick(desiredBid))
	askPrice := types.Price(s.ctx.rules().RoundPriceToTick(desiredAsk))

	var target types.QuoteTarget
	if !tooLong {
		target.Bid = &types.Quote{Price: bidPrice, Quantity: quantity}
	}
	if !tooShort {
		target.Ask = &types.Quote{Price: askPrice, Quantity: quantity}
	}

	if target.Bid == nil && target.Ask == nil {
		return types.QuoteTarget{}, BothSidesSuppressedByExposure
	}
	return target, nil
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
