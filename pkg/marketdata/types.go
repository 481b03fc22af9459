package marketdata

import "time"

// TokenOverview is a point-in-time snapshot of one token's market facts.
// Produced fresh per evaluation pass, never persisted.
type TokenOverview struct {
	Address        string  `json:"address"`
	PriceUsd       float64 `json:"price_usd"`
	Volume24h      float64 `json:"volume_24h"`
	Liquidity      float64 `json:"liquidity"`
	MarketCap      float64 `json:"market_cap"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// Candle is one OHLCV bar.
type Candle struct {
	UnixTime int64   `json:"unix_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Pair is a newly listed trading pair candidate for sniper scans.
type Pair struct {
	PairAddress  string    `json:"pair_address"`
	TokenAddress string    `json:"token_address"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	ListedAt     time.Time `json:"listed_at"`
	PriceUsd     float64   `json:"price_usd"`
	Liquidity    float64   `json:"liquidity"`
	Volume24h    float64   `json:"volume_24h"`
	MarketCap    float64   `json:"market_cap"`
}

// AgeMinutes returns how long ago the pair was listed, relative to now.
func (p Pair) AgeMinutes(now time.Time) float64 {
	return now.Sub(p.ListedAt).Minutes()
}
