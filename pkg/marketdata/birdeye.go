package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BirdeyeClient calls the Birdeye public data API. It is the primary
// source for token overviews, OHLCV candles and new listings.
type BirdeyeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBirdeyeClient creates a new Birdeye API client.
func NewBirdeyeClient(apiKey string, timeout time.Duration) *BirdeyeClient {
	return &BirdeyeClient{
		apiKey:  apiKey,
		baseURL: "https://public-api.birdeye.so",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				IdleConnTimeout:       10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

type birdeyeEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type birdeyeOverview struct {
	Address           string  `json:"address"`
	Price             float64 `json:"price"`
	V24hUSD           float64 `json:"v24hUSD"`
	Liquidity         float64 `json:"liquidity"`
	MarketCap         float64 `json:"mc"`
	PriceChange24hPct float64 `json:"priceChange24hPercent"`
}

type birdeyeCandle struct {
	UnixTime int64   `json:"unixTime"`
	O        float64 `json:"o"`
	H        float64 `json:"h"`
	L        float64 `json:"l"`
	C        float64 `json:"c"`
	V        float64 `json:"v"`
}

type birdeyeNewListing struct {
	Address          string  `json:"address"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	LiquidityAddedAt string  `json:"liquidityAddedAt"`
	Liquidity        float64 `json:"liquidity"`
	V24hUSD          float64 `json:"v24hUSD"`
	MarketCap        float64 `json:"mc"`
	Price            float64 `json:"price"`
}

func (c *BirdeyeClient) get(ctx context.Context, path string, params url.Values, out any) error {
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("x-chain", "solana")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	var envelope birdeyeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("birdeye returned success=false")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode data payload: %w", err)
	}
	return nil
}

// GetTokenOverview returns the current market facts for one token.
func (c *BirdeyeClient) GetTokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	params := url.Values{}
	params.Add("address", address)

	var data birdeyeOverview
	if err := c.get(ctx, "/defi/token_overview", params, &data); err != nil {
		return nil, err
	}

	return &TokenOverview{
		Address:        address,
		PriceUsd:       data.Price,
		Volume24h:      data.V24hUSD,
		Liquidity:      data.Liquidity,
		MarketCap:      data.MarketCap,
		PriceChange24h: data.PriceChange24hPct,
	}, nil
}

// GetOHLCV returns up to limit candles for the given timeframe, oldest first.
// Timeframe values follow the Birdeye convention: 1m, 5m, 15m, 1H, 4H, 1D.
func (c *BirdeyeClient) GetOHLCV(ctx context.Context, address, timeframe string, limit int) ([]Candle, error) {
	seconds, err := timeframeSeconds(timeframe)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	params := url.Values{}
	params.Add("address", address)
	params.Add("type", timeframe)
	params.Add("time_from", strconv.FormatInt(now-int64(limit)*seconds, 10))
	params.Add("time_to", strconv.FormatInt(now, 10))

	var data struct {
		Items []birdeyeCandle `json:"items"`
	}
	if err := c.get(ctx, "/defi/ohlcv", params, &data); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(data.Items))
	for _, item := range data.Items {
		candles = append(candles, Candle{
			UnixTime: item.UnixTime,
			Open:     item.O,
			High:     item.H,
			Low:      item.L,
			Close:    item.C,
			Volume:   item.V,
		})
	}
	return candles, nil
}

// GetNewListings returns recently listed tokens, newest first.
func (c *BirdeyeClient) GetNewListings(ctx context.Context, limit int) ([]Pair, error) {
	params := url.Values{}
	params.Add("limit", strconv.Itoa(limit))

	var data struct {
		Items []birdeyeNewListing `json:"items"`
	}
	if err := c.get(ctx, "/defi/v2/tokens/new_listing", params, &data); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(data.Items))
	for _, item := range data.Items {
		listedAt, err := time.Parse(time.RFC3339, item.LiquidityAddedAt)
		if err != nil {
			continue
		}
		pairs = append(pairs, Pair{
			TokenAddress: item.Address,
			Name:         item.Name,
			Symbol:       item.Symbol,
			ListedAt:     listedAt,
			PriceUsd:     item.Price,
			Liquidity:    item.Liquidity,
			Volume24h:    item.V24hUSD,
			MarketCap:    item.MarketCap,
		})
	}
	return pairs, nil
}

func timeframeSeconds(timeframe string) (int64, error) {
	switch timeframe {
	case "1m":
		return 60, nil
	case "5m":
		return 300, nil
	case "15m":
		return 900, nil
	case "30m":
		return 1800, nil
	case "1H":
		return 3600, nil
	case "4H":
		return 14400, nil
	case "1D":
		return 86400, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
}
