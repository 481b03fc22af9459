package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DexScreenerClient calls the DexScreener public API. It needs no API key
// and serves as the fallback token overview source.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDexScreenerClient creates a new DexScreener API client.
func NewDexScreenerClient(timeout time.Duration) *DexScreenerClient {
	return &DexScreenerClient{
		baseURL: "https://api.dexscreener.com",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type dexScreenerPair struct {
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Fdv           float64 `json:"fdv"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
}

// GetTokenOverview returns market facts for the token's most liquid pair.
func (c *DexScreenerClient) GetTokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	pairs, err := c.getTokenPairs(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs found for token %s", address)
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.Usd > best.Liquidity.Usd {
			best = p
		}
	}

	price, _ := strconv.ParseFloat(best.PriceUsd, 64)
	return &TokenOverview{
		Address:        address,
		PriceUsd:       price,
		Volume24h:      best.Volume.H24,
		Liquidity:      best.Liquidity.Usd,
		MarketCap:      best.Fdv,
		PriceChange24h: best.PriceChange.H24,
	}, nil
}

// GetPair returns one pair by its pair address, or nil if unknown.
func (c *DexScreenerClient) GetPair(ctx context.Context, pairAddress string) (*Pair, error) {
	fullURL := fmt.Sprintf("%s/latest/dex/pairs/solana/%s", c.baseURL, pairAddress)

	var body struct {
		Pairs []dexScreenerPair `json:"pairs"`
	}
	if err := c.get(ctx, fullURL, &body); err != nil {
		return nil, err
	}
	if len(body.Pairs) == 0 {
		return nil, nil
	}

	pair := toPair(body.Pairs[0])
	return &pair, nil
}

func (c *DexScreenerClient) getTokenPairs(ctx context.Context, address string) ([]dexScreenerPair, error) {
	fullURL := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, address)

	var body struct {
		Pairs []dexScreenerPair `json:"pairs"`
	}
	if err := c.get(ctx, fullURL, &body); err != nil {
		return nil, err
	}
	return body.Pairs, nil
}

func (c *DexScreenerClient) get(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

func toPair(p dexScreenerPair) Pair {
	price, _ := strconv.ParseFloat(p.PriceUsd, 64)
	return Pair{
		PairAddress:  p.PairAddress,
		TokenAddress: p.BaseToken.Address,
		Name:         p.BaseToken.Name,
		Symbol:       p.BaseToken.Symbol,
		ListedAt:     time.UnixMilli(p.PairCreatedAt),
		PriceUsd:     price,
		Liquidity:    p.Liquidity.Usd,
		Volume24h:    p.Volume.H24,
		MarketCap:    p.Fdv,
	}
}
