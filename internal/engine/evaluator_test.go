package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soltrader/internal/models"
	"soltrader/pkg/marketdata"
)

type fakeMarket struct {
	pairs    []marketdata.Pair
	candles  []marketdata.Candle
	overview *marketdata.TokenOverview
	err      error
}

func (f *fakeMarket) GetTokenOverview(ctx context.Context, address string) (*marketdata.TokenOverview, error) {
	return f.overview, f.err
}

func (f *fakeMarket) GetOHLCV(ctx context.Context, address, timeframe string, limit int) ([]marketdata.Candle, error) {
	return f.candles, f.err
}

func (f *fakeMarket) GetNewPairs(ctx context.Context, maxAge time.Duration) ([]marketdata.Pair, error) {
	return f.pairs, f.err
}

func newTestEvaluator(market *fakeMarket, now time.Time) *Evaluator {
	e := NewEvaluator(market)
	e.now = func() time.Time { return now }
	return e
}

func floatPtr(v float64) *float64 { return &v }

func candlesFromCloses(closes ...float64) []marketdata.Candle {
	out := make([]marketdata.Candle, len(closes))
	for i, c := range closes {
		out[i] = marketdata.Candle{UnixTime: int64(i) * 3600, Close: c}
	}
	return out
}

func TestSniperEvaluation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sniperCfg := &SniperConfig{
		MaxAgeMinutes: 30,
		MinLiquidity:  5000,
		MinVolume:     floatPtr(10000),
		MinMarketCap:  floatPtr(10000),
		NameFilter:    "claude",
		Amount:        0.1,
		SlippageBps:   300,
	}

	freshPair := marketdata.Pair{
		TokenAddress: "ClaudeMint111",
		Name:         "claude coin",
		Symbol:       "CLDE",
		ListedAt:     now.Add(-10 * time.Minute),
		Liquidity:    8000,
		Volume24h:    15000,
		MarketCap:    20000,
	}

	t.Run("Matching Pair Produces Buy Instruction", func(t *testing.T) {
		market := &fakeMarket{pairs: []marketdata.Pair{freshPair}}
		e := newTestEvaluator(market, now)

		strategy := &models.Strategy{ID: 1, Type: models.StrategyTypeSniper}
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Sniper: sniperCfg})
		require.NoError(t, err)
		require.Len(t, instructions, 1)

		got := instructions[0]
		assert.Equal(t, models.DirectionBuy, got.Direction)
		assert.Equal(t, SolMint, got.InputToken)
		assert.Equal(t, "ClaudeMint111", got.OutputToken)
		assert.Equal(t, 0.1, got.Amount)
		assert.Equal(t, 300, got.SlippageBps)
	})

	t.Run("Too Old Pair Is Filtered", func(t *testing.T) {
		old := freshPair
		old.ListedAt = now.Add(-45 * time.Minute)
		market := &fakeMarket{pairs: []marketdata.Pair{old}}
		e := newTestEvaluator(market, now)

		strategy := &models.Strategy{ID: 1, Type: models.StrategyTypeSniper}
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Sniper: sniperCfg})
		require.NoError(t, err)
		assert.Empty(t, instructions)
	})

	t.Run("Name Filter Is Case Insensitive", func(t *testing.T) {
		pair := freshPair
		pair.Name = "CLAUDE Coin"
		assert.True(t, MatchesSniperFilters(sniperCfg, pair, now))

		pair.Name = "other coin"
		pair.Symbol = "OTHR"
		assert.False(t, MatchesSniperFilters(sniperCfg, pair, now))
	})

	t.Run("Missing Bounds Are Unconstrained", func(t *testing.T) {
		loose := &SniperConfig{MaxAgeMinutes: 30, MinLiquidity: 0, Amount: 0.1, SlippageBps: 100}
		pair := freshPair
		pair.Volume24h = 0
		pair.MarketCap = 0
		assert.True(t, MatchesSniperFilters(loose, pair, now))
	})

	t.Run("Tightening Filters Never Adds Matches", func(t *testing.T) {
		pairs := []marketdata.Pair{
			freshPair,
			{TokenAddress: "A", Name: "claude two", ListedAt: now.Add(-25 * time.Minute), Liquidity: 5500, Volume24h: 12000, MarketCap: 15000},
			{TokenAddress: "B", Name: "claude three", ListedAt: now.Add(-5 * time.Minute), Liquidity: 9000, Volume24h: 30000, MarketCap: 50000},
		}

		countMatches := func(cfg *SniperConfig) int {
			n := 0
			for _, p := range pairs {
				if MatchesSniperFilters(cfg, p, now) {
					n++
				}
			}
			return n
		}

		base := countMatches(sniperCfg)

		tighterLiquidity := *sniperCfg
		tighterLiquidity.MinLiquidity = 8500
		assert.LessOrEqual(t, countMatches(&tighterLiquidity), base)

		tighterAge := *sniperCfg
		tighterAge.MaxAgeMinutes = 8
		assert.LessOrEqual(t, countMatches(&tighterAge), base)

		looser := *sniperCfg
		looser.MinLiquidity = 0
		looser.MinVolume = nil
		assert.GreaterOrEqual(t, countMatches(&looser), base)
	})

	t.Run("Market Error Becomes Data Unavailable", func(t *testing.T) {
		market := &fakeMarket{err: errors.New("upstream 503")}
		e := newTestEvaluator(market, now)

		strategy := &models.Strategy{ID: 1, Type: models.StrategyTypeSniper}
		_, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Sniper: sniperCfg})
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestConditionalEvaluation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	strategy := &models.Strategy{ID: 2, Type: models.StrategyTypeConditional}

	baseCfg := func() *ConditionalConfig {
		return &ConditionalConfig{
			TokenAddress: "TokenMint111",
			Indicator:    IndicatorPrice,
			Timeframe:    "1H",
			Value:        10,
			Amount:       0.5,
			SlippageBps:  100,
		}
	}

	t.Run("Crosses Above Fires Only On The Crossing Tick", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Trigger = TriggerCrossesAbove

		// prev below, latest at threshold: fires
		market := &fakeMarket{candles: candlesFromCloses(8, 9, 9.5, 10)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)

		// both ticks above: does not fire again
		market.candles = candlesFromCloses(8, 9, 10.5, 11)
		instructions, err = e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Empty(t, instructions)
	})

	t.Run("Crosses Below Mirrors Crosses Above", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Trigger = TriggerCrossesBelow

		market := &fakeMarket{candles: candlesFromCloses(12, 11, 10.5, 9)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)

		market.candles = candlesFromCloses(12, 11, 9.5, 9)
		instructions, err = e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Empty(t, instructions)
	})

	t.Run("Price Above Checks Latest Tick Only", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Trigger = TriggerPriceAbove

		// previous tick below the threshold is irrelevant
		market := &fakeMarket{candles: candlesFromCloses(8, 9, 9.5, 10)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)

		// fires again while still above: no two-tick requirement
		market.candles = candlesFromCloses(8, 9, 10.5, 11)
		instructions, err = e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)
	})

	t.Run("EMA Crossing Uses The Indicator Series", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Indicator = IndicatorEMA
		cfg.Period = 3
		cfg.Trigger = TriggerCrossesAbove
		cfg.Value = 11.5

		// ema3 series ends ..., 11, 12: crosses 11.5 on the final tick
		market := &fakeMarket{candles: candlesFromCloses(9, 10, 11, 10, 12, 13)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)
	})

	t.Run("Latest Only Trigger Needs One Defined Value", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Indicator = IndicatorEMA
		cfg.Period = 3
		cfg.Trigger = TriggerPriceAbove
		cfg.Value = 1.5

		// ema3 over three closes defines exactly one value
		market := &fakeMarket{candles: candlesFromCloses(1, 2, 3)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)

		// a crossing trigger still needs the previous tick
		cfg.Trigger = TriggerCrossesAbove
		_, err = e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("Not Enough Candles Is Reportable Not Fatal", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Indicator = IndicatorRSI
		cfg.Period = 14
		cfg.Trigger = TriggerPriceBelow

		market := &fakeMarket{candles: candlesFromCloses(1, 2, 3)}
		e := newTestEvaluator(market, now)
		_, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("No Candles Is Data Unavailable", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Trigger = TriggerPriceAbove

		market := &fakeMarket{}
		e := newTestEvaluator(market, now)
		_, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("Price Touches Fires When Range Straddles", func(t *testing.T) {
		cfg := baseCfg()
		cfg.Trigger = TriggerPriceTouches

		market := &fakeMarket{candles: candlesFromCloses(8, 9, 9.5, 10.5)}
		e := newTestEvaluator(market, now)
		instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Len(t, instructions, 1)

		market.candles = candlesFromCloses(8, 9, 9.2, 9.5)
		instructions, err = e.Evaluate(context.Background(), strategy, &StrategyConfig{Conditional: cfg})
		require.NoError(t, err)
		assert.Empty(t, instructions)
	})
}

func TestSpotEvaluation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEvaluator(&fakeMarket{}, now)

	cfg := &SpotConfig{
		InputToken:     SolMint,
		OutputToken:    "TokenMint111",
		InputDecimals:  9,
		OutputDecimals: 6,
		Amount:         2.5,
		Direction:      models.DirectionBuy,
		SlippageBps:    50,
	}

	strategy := &models.Strategy{ID: 3, Type: models.StrategyTypeSpot}
	instructions, err := e.Evaluate(context.Background(), strategy, &StrategyConfig{Spot: cfg})
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	assert.Equal(t, 2.5, instructions[0].Amount)
	assert.Equal(t, "TokenMint111", instructions[0].OutputToken)
}

func TestTriggerFired(t *testing.T) {
	cases := []struct {
		name                    string
		trigger                 string
		prev, latest, threshold float64
		want                    bool
	}{
		{"above at threshold", TriggerPriceAbove, 5, 10, 10, true},
		{"above below threshold", TriggerPriceAbove, 5, 9.9, 10, false},
		{"below at threshold", TriggerPriceBelow, 15, 10, 10, true},
		{"below above threshold", TriggerPriceBelow, 15, 10.1, 10, false},
		{"crosses above exact", TriggerCrossesAbove, 9.9, 10, 10, true},
		{"crosses above both above", TriggerCrossesAbove, 10.1, 11, 10, false},
		{"crosses above both below", TriggerCrossesAbove, 8, 9, 10, false},
		{"crosses below exact", TriggerCrossesBelow, 10.1, 10, 10, true},
		{"crosses below both below", TriggerCrossesBelow, 9, 8, 10, false},
		{"touches straddle down", TriggerPriceTouches, 10.5, 9.5, 10, true},
		{"touches no straddle", TriggerPriceTouches, 11, 12, 10, false},
		{"unknown trigger", "warps_to", 1, 100, 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TriggerFired(tc.trigger, tc.prev, tc.latest, tc.threshold))
		})
	}
}
