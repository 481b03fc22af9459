package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"soltrader/internal/models"
)

// WSOL mint, the input side of every SOL-denominated buy.
const SolMint = "So11111111111111111111111111111111111111112"

// SolDecimals is the lamport scale.
const SolDecimals = 9

// Indicator names accepted by conditional strategies.
const (
	IndicatorEMA   = "EMA"
	IndicatorSMA   = "SMA"
	IndicatorRSI   = "RSI"
	IndicatorPrice = "PRICE"
)

// Trigger names accepted by conditional strategies.
const (
	TriggerPriceAbove   = "price_above"
	TriggerPriceBelow   = "price_below"
	TriggerPriceTouches = "price_touches"
	TriggerCrossesAbove = "crosses_above"
	TriggerCrossesBelow = "crosses_below"
)

// SniperConfig filters newly listed pairs. Nil bounds are unconstrained.
type SniperConfig struct {
	MaxAgeMinutes float64  `json:"max_age_minutes"`
	MinLiquidity  float64  `json:"min_liquidity"`
	MaxLiquidity  *float64 `json:"max_liquidity,omitempty"`
	MinVolume     *float64 `json:"min_volume,omitempty"`
	MinMarketCap  *float64 `json:"min_market_cap,omitempty"`
	MaxMarketCap  *float64 `json:"max_market_cap,omitempty"`
	NameFilter    string   `json:"name_filter,omitempty"`
	Amount        float64  `json:"amount"` // SOL per trade
	SlippageBps   int      `json:"slippage_bps"`
	TakeProfit    *float64 `json:"take_profit,omitempty"` // percent
	StopLoss      *float64 `json:"stop_loss,omitempty"`   // percent
}

// ConditionalConfig fires when an indicator series compares against a
// threshold. The entry side is always SOL into the configured token.
type ConditionalConfig struct {
	TokenAddress string  `json:"token_address"`
	Indicator    string  `json:"indicator"`
	Period       int     `json:"period"`
	Timeframe    string  `json:"timeframe"`
	Trigger      string  `json:"trigger"`
	Value        float64 `json:"value"`
	Amount       float64 `json:"amount"` // SOL per trade
	SlippageBps  int     `json:"slippage_bps"`
}

// SpotConfig is a direct one-shot swap instruction.
type SpotConfig struct {
	InputToken     string  `json:"input_token"`
	OutputToken    string  `json:"output_token"`
	InputDecimals  int     `json:"input_decimals"`
	OutputDecimals int     `json:"output_decimals"`
	Amount         float64 `json:"amount"`
	Direction      string  `json:"direction"`
	SlippageBps    int     `json:"slippage_bps"`
	OneShot        *bool   `json:"one_shot,omitempty"` // default true
}

// IsOneShot reports whether the strategy deactivates after its first
// confirmed execution.
func (c *SpotConfig) IsOneShot() bool {
	return c.OneShot == nil || *c.OneShot
}

// StrategyConfig is the tagged union over the three per-type variants.
// Exactly one field is non-nil after a successful parse.
type StrategyConfig struct {
	Sniper      *SniperConfig
	Conditional *ConditionalConfig
	Spot        *SpotConfig
}

// ParseConfig validates and decodes a raw config blob for the given
// strategy type. Unknown fields and missing required fields are rejected
// here, at the creation boundary, not at evaluation time.
func ParseConfig(strategyType string, raw json.RawMessage) (*StrategyConfig, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("config is required")
	}

	switch strategyType {
	case models.StrategyTypeSniper:
		var cfg SniperConfig
		if err := strictUnmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &StrategyConfig{Sniper: &cfg}, nil

	case models.StrategyTypeConditional:
		var cfg ConditionalConfig
		if err := strictUnmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &StrategyConfig{Conditional: &cfg}, nil

	case models.StrategyTypeSpot:
		var cfg SpotConfig
		if err := strictUnmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &StrategyConfig{Spot: &cfg}, nil

	default:
		return nil, fmt.Errorf("unknown strategy type: %s", strategyType)
	}
}

func strictUnmarshal(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *SniperConfig) validate() error {
	if c.MaxAgeMinutes <= 0 {
		return fmt.Errorf("max_age_minutes must be positive")
	}
	if c.MinLiquidity < 0 {
		return fmt.Errorf("min_liquidity must not be negative")
	}
	if c.MaxLiquidity != nil && *c.MaxLiquidity < c.MinLiquidity {
		return fmt.Errorf("max_liquidity must not be below min_liquidity")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return validateSlippage(c.SlippageBps)
}

func (c *ConditionalConfig) validate() error {
	if c.TokenAddress == "" {
		return fmt.Errorf("token_address is required")
	}
	switch c.Indicator {
	case IndicatorEMA, IndicatorSMA, IndicatorRSI, IndicatorPrice:
	default:
		return fmt.Errorf("unknown indicator: %s", c.Indicator)
	}
	if c.Indicator != IndicatorPrice && c.Period <= 0 {
		return fmt.Errorf("period must be positive")
	}
	if c.Timeframe == "" {
		return fmt.Errorf("timeframe is required")
	}
	switch c.Trigger {
	case TriggerPriceAbove, TriggerPriceBelow, TriggerPriceTouches,
		TriggerCrossesAbove, TriggerCrossesBelow:
	default:
		return fmt.Errorf("unknown trigger: %s", c.Trigger)
	}
	if c.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return validateSlippage(c.SlippageBps)
}

func (c *SpotConfig) validate() error {
	if c.InputToken == "" || c.OutputToken == "" {
		return fmt.Errorf("input_token and output_token are required")
	}
	if c.InputToken == c.OutputToken {
		return fmt.Errorf("input_token and output_token must differ")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	switch c.Direction {
	case models.DirectionBuy, models.DirectionSell:
	default:
		return fmt.Errorf("direction must be BUY or SELL")
	}
	if c.InputDecimals == 0 {
		c.InputDecimals = SolDecimals
	}
	if c.OutputDecimals == 0 {
		c.OutputDecimals = SolDecimals
	}
	return validateSlippage(c.SlippageBps)
}

func validateSlippage(bps int) error {
	if bps <= 0 || bps > 5000 {
		return fmt.Errorf("slippage_bps must be in (0, 5000]")
	}
	return nil
}
