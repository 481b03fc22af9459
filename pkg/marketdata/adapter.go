package marketdata

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Adapter composes the upstream sources into one market data surface.
// Every call is bounded by requestTimeout and degrades to nil/empty on
// upstream failure; callers distinguish "no data" from "filtered out".
type Adapter struct {
	birdeye        *BirdeyeClient
	dexscreener    *DexScreenerClient
	stream         *PumpPortalStream
	requestTimeout time.Duration
}

// NewAdapter builds the adapter. stream may be nil when the websocket
// feed is not configured.
func NewAdapter(birdeye *BirdeyeClient, dexscreener *DexScreenerClient, stream *PumpPortalStream, requestTimeout time.Duration) *Adapter {
	return &Adapter{
		birdeye:        birdeye,
		dexscreener:    dexscreener,
		stream:         stream,
		requestTimeout: requestTimeout,
	}
}

// GetTokenOverview tries Birdeye first, then DexScreener. Returns nil
// when no source can serve the token.
func (a *Adapter) GetTokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	overview, err := a.birdeye.GetTokenOverview(ctx, address)
	if err == nil {
		return overview, nil
	}
	log.WithField("token", address).Debugf("birdeye overview failed, falling back: %v", err)

	overview, err = a.dexscreener.GetTokenOverview(ctx, address)
	if err != nil {
		log.WithField("token", address).Warnf("all overview sources failed: %v", err)
		return nil, nil
	}
	return overview, nil
}

// GetOHLCV returns candles oldest-first, or nil on upstream failure.
func (a *Adapter) GetOHLCV(ctx context.Context, address, timeframe string, limit int) ([]Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	candles, err := a.birdeye.GetOHLCV(ctx, address, timeframe, limit)
	if err != nil {
		log.WithField("token", address).Warnf("ohlcv fetch failed: %v", err)
		return nil, nil
	}
	return candles, nil
}

// GetNewPairs merges the websocket buffer with Birdeye new listings and
// de-dupes by token address. maxAge bounds how far back to look.
func (a *Adapter) GetNewPairs(ctx context.Context, maxAge time.Duration) ([]Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	seen := make(map[string]bool)
	var pairs []Pair

	if a.stream != nil {
		for _, p := range a.stream.Recent(maxAge) {
			if !seen[p.TokenAddress] {
				seen[p.TokenAddress] = true
				pairs = append(pairs, p)
			}
		}
	}

	listings, err := a.birdeye.GetNewListings(ctx, 50)
	if err != nil {
		log.Warnf("new listing fetch failed: %v", err)
		// websocket buffer alone still counts as data
		return pairs, nil
	}
	for _, p := range listings {
		if !seen[p.TokenAddress] {
			seen[p.TokenAddress] = true
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}
