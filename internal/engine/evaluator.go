package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"soltrader/internal/indicator"
	"soltrader/internal/models"
	"soltrader/pkg/marketdata"
)

// MarketData is the read-only market surface the evaluator consumes.
// Implementations are time-boxed and degrade to nil/empty on upstream
// failure.
type MarketData interface {
	GetTokenOverview(ctx context.Context, address string) (*marketdata.TokenOverview, error)
	GetOHLCV(ctx context.Context, address, timeframe string, limit int) ([]marketdata.Candle, error)
	GetNewPairs(ctx context.Context, maxAge time.Duration) ([]marketdata.Pair, error)
}

// ErrDataUnavailable marks a transient market data failure: the strategy
// reports an error for this tick and the next poll retries naturally.
var ErrDataUnavailable = errors.New("market data unavailable")

// Evaluator decides MATCH / NO_MATCH / error for one strategy against
// current market data. It holds no per-strategy state: crossing triggers
// are re-derived from the historical window on every poll.
type Evaluator struct {
	market MarketData
	now    func() time.Time
}

// NewEvaluator creates an evaluator over the given market surface.
func NewEvaluator(market MarketData) *Evaluator {
	return &Evaluator{market: market, now: time.Now}
}

// Evaluate returns zero or more trade instructions for the strategy.
// An empty result with nil error means NO_MATCH.
func (e *Evaluator) Evaluate(ctx context.Context, strategy *models.Strategy, cfg *StrategyConfig) ([]TradeInstruction, error) {
	switch {
	case cfg.Sniper != nil:
		return e.evaluateSniper(ctx, cfg.Sniper)
	case cfg.Conditional != nil:
		return e.evaluateConditional(ctx, cfg.Conditional)
	case cfg.Spot != nil:
		return evaluateSpot(cfg.Spot), nil
	default:
		return nil, fmt.Errorf("strategy %d has no config variant", strategy.ID)
	}
}

func (e *Evaluator) evaluateSniper(ctx context.Context, cfg *SniperConfig) ([]TradeInstruction, error) {
	maxAge := time.Duration(cfg.MaxAgeMinutes * float64(time.Minute))
	pairs, err := e.market.GetNewPairs(ctx, maxAge)
	if err != nil {
		return nil, fmt.Errorf("%w: new pairs: %v", ErrDataUnavailable, err)
	}

	now := e.now()
	var instructions []TradeInstruction
	for _, pair := range pairs {
		if !MatchesSniperFilters(cfg, pair, now) {
			continue
		}
		instructions = append(instructions, TradeInstruction{
			InputToken:     SolMint,
			OutputToken:    pair.TokenAddress,
			InputDecimals:  SolDecimals,
			OutputDecimals: 6, // pump-style token mints default to 6
			Amount:         cfg.Amount,
			SlippageBps:    cfg.SlippageBps,
			Direction:      models.DirectionBuy,
			TokenName:      pair.Name,
			TakeProfit:     cfg.TakeProfit,
			StopLoss:       cfg.StopLoss,
		})
	}
	return instructions, nil
}

// MatchesSniperFilters reports whether one pair passes every populated
// bound of the sniper config. A missing bound is unconstrained.
func MatchesSniperFilters(cfg *SniperConfig, pair marketdata.Pair, now time.Time) bool {
	if pair.AgeMinutes(now) > cfg.MaxAgeMinutes {
		return false
	}
	if pair.Liquidity < cfg.MinLiquidity {
		return false
	}
	if cfg.MaxLiquidity != nil && pair.Liquidity > *cfg.MaxLiquidity {
		return false
	}
	if cfg.MinVolume != nil && pair.Volume24h < *cfg.MinVolume {
		return false
	}
	if cfg.MinMarketCap != nil && pair.MarketCap < *cfg.MinMarketCap {
		return false
	}
	if cfg.MaxMarketCap != nil && pair.MarketCap > *cfg.MaxMarketCap {
		return false
	}
	if cfg.NameFilter != "" {
		needle := strings.ToLower(cfg.NameFilter)
		name := strings.ToLower(pair.Name)
		symbol := strings.ToLower(pair.Symbol)
		if !strings.Contains(name, needle) && !strings.Contains(symbol, needle) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateConditional(ctx context.Context, cfg *ConditionalConfig) ([]TradeInstruction, error) {
	limit := 3 * cfg.Period
	if limit < 50 {
		limit = 50
	}

	candles, err := e.market.GetOHLCV(ctx, cfg.TokenAddress, cfg.Timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ohlcv: %v", ErrDataUnavailable, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrDataUnavailable, cfg.TokenAddress)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	series, err := indicatorSeries(cfg.Indicator, closes, cfg.Period)
	if err != nil {
		if errors.Is(err, indicator.ErrNotEnoughData) {
			return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		return nil, err
	}

	prev, latest, ok := lastTwoDefined(series)
	if !ok {
		// only the crossing and touch triggers consult the previous tick
		switch cfg.Trigger {
		case TriggerPriceAbove, TriggerPriceBelow:
			if v, vok := lastDefined(series); vok {
				prev, latest, ok = v, v, true
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: indicator window too short", ErrDataUnavailable)
	}

	if !TriggerFired(cfg.Trigger, prev, latest, cfg.Value) {
		return nil, nil
	}

	return []TradeInstruction{{
		InputToken:     SolMint,
		OutputToken:    cfg.TokenAddress,
		InputDecimals:  SolDecimals,
		OutputDecimals: 6,
		Amount:         cfg.Amount,
		SlippageBps:    cfg.SlippageBps,
		Direction:      models.DirectionBuy,
	}}, nil
}

func evaluateSpot(cfg *SpotConfig) []TradeInstruction {
	// a spot strategy always matches; one-shot handling is the loop's job
	return []TradeInstruction{{
		InputToken:     cfg.InputToken,
		OutputToken:    cfg.OutputToken,
		InputDecimals:  cfg.InputDecimals,
		OutputDecimals: cfg.OutputDecimals,
		Amount:         cfg.Amount,
		SlippageBps:    cfg.SlippageBps,
		Direction:      cfg.Direction,
	}}
}

func indicatorSeries(name string, closes []float64, period int) ([]float64, error) {
	switch name {
	case IndicatorEMA:
		return indicator.EMA(closes, period)
	case IndicatorSMA:
		return indicator.SMA(closes, period)
	case IndicatorRSI:
		return indicator.RSI(closes, period)
	case IndicatorPrice:
		return closes, nil
	default:
		return nil, fmt.Errorf("unknown indicator: %s", name)
	}
}

// lastDefined returns the final series value when it is non-NaN.
func lastDefined(series []float64) (latest float64, ok bool) {
	if len(series) == 0 {
		return 0, false
	}
	latest = series[len(series)-1]
	if math.IsNaN(latest) {
		return 0, false
	}
	return latest, true
}

// lastTwoDefined returns the last two non-NaN series values.
func lastTwoDefined(series []float64) (prev, latest float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}
	latest = series[len(series)-1]
	prev = series[len(series)-2]
	if math.IsNaN(latest) || math.IsNaN(prev) {
		return 0, 0, false
	}
	return prev, latest, true
}

// TriggerFired decides whether a trigger condition holds. The threshold
// comparisons are inclusive on the latest tick. Only the crossing
// triggers consult the previous value: they fire exactly on the tick
// where the series moves across the threshold, never on two consecutive
// ticks on the same side.
func TriggerFired(trigger string, prev, latest, threshold float64) bool {
	switch trigger {
	case TriggerPriceAbove:
		return latest >= threshold
	case TriggerPriceBelow:
		return latest <= threshold
	case TriggerPriceTouches:
		lo, hi := prev, latest
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo <= threshold && threshold <= hi
	case TriggerCrossesAbove:
		return prev < threshold && latest >= threshold
	case TriggerCrossesBelow:
		return prev > threshold && latest <= threshold
	default:
		return false
	}
}
