// Package jupiter implements the swap execution adapter on top of the
// Jupiter aggregator API: quote, transaction build, then sign/submit/confirm
// through the Solana RPC layer.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	soltrader "soltrader/pkg/solana"
)

// Typed swap failures. ErrNoRoute means the aggregator cannot serve the
// pair at the requested size; the others mean the swap was attempted.
var (
	ErrNoRoute        = errors.New("no route for swap")
	ErrSubmitFailed   = errors.New("swap submission failed")
	ErrConfirmTimeout = errors.New("swap confirmation timed out")
)

// Client calls the Jupiter aggregator API.
type Client struct {
	baseURL    string
	rpcClient  *rpc.Client
	httpClient *http.Client
}

// NewClient creates a Jupiter client bound to one Solana RPC endpoint.
func NewClient(rpcClient *rpc.Client, timeout time.Duration) *Client {
	return &Client{
		baseURL:   "https://lite-api.jup.ag/swap/v1",
		rpcClient: rpcClient,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// QuoteResponse is the subset of the Jupiter quote payload the engine uses.
// The raw message is retained because the swap-build endpoint echoes it back.
type QuoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SwapMode       string `json:"swapMode"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`

	raw json.RawMessage
}

// OutAmountUint returns the quoted output in smallest units.
func (q *QuoteResponse) OutAmountUint() uint64 {
	n, _ := strconv.ParseUint(q.OutAmount, 10, 64)
	return n
}

// PriceImpact returns the quoted price impact as a fraction.
func (q *QuoteResponse) PriceImpact() float64 {
	f, _ := strconv.ParseFloat(q.PriceImpactPct, 64)
	return f
}

// SwapResult reports one executed swap.
type SwapResult struct {
	Signature            string
	RealizedOutputAmount uint64
	PriceImpact          float64
}

// GetQuote fetches a swap quote. amount is in the input asset's smallest
// unit. A quote failure for an exotic pair maps to ErrNoRoute.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*QuoteResponse, error) {
	params := url.Values{}
	params.Add("inputMint", inputMint)
	params.Add("outputMint", outputMint)
	params.Add("amount", strconv.FormatUint(amount, 10))
	params.Add("slippageBps", strconv.Itoa(slippageBps))
	params.Add("restrictIntermediateTokens", "true")

	fullURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, inputMint, outputMint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request failed with status: %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON response: %w", err)
	}

	var quote QuoteResponse
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse quote: %w", err)
	}
	quote.raw = raw

	if quote.OutAmountUint() == 0 {
		return nil, fmt.Errorf("%w: zero output for %s -> %s", ErrNoRoute, inputMint, outputMint)
	}
	return &quote, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction asks Jupiter to assemble the serialized transaction
// for a previously obtained quote.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *QuoteResponse, userPublicKey string) (string, error) {
	body, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.raw,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap build failed with status: %d", resp.StatusCode)
	}

	var swapResp swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swapResp); err != nil {
		return "", fmt.Errorf("failed to decode JSON response: %w", err)
	}
	if swapResp.SwapTransaction == "" {
		return "", errors.New("swap response missing transaction")
	}
	return swapResp.SwapTransaction, nil
}

// ExecuteSwap runs the full quote -> build -> sign -> submit -> confirm
// sequence. The returned error wraps exactly one of the typed failures so
// callers can separate "no route" from submission problems. On a
// confirmation timeout the signature is still returned.
func (c *Client) ExecuteSwap(ctx context.Context, signer *soltrader.Signer, inputMint, outputMint string, amount uint64, slippageBps int) (*SwapResult, error) {
	quote, err := c.GetQuote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		if errors.Is(err, ErrNoRoute) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}

	txBase64, err := c.BuildSwapTransaction(ctx, quote, signer.PublicKey().String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	tx, err := soltrader.DecodeTransaction(txBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	signature, err := soltrader.SignAndSubmit(ctx, c.rpcClient, signer, tx)
	if err != nil {
		if signature != "" {
			// submitted but not confirmed in time
			return &SwapResult{Signature: signature, RealizedOutputAmount: 0, PriceImpact: quote.PriceImpact()},
				fmt.Errorf("%w: %v", ErrConfirmTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	log.WithFields(log.Fields{
		"signature":    signature,
		"input_mint":   inputMint,
		"output_mint":  outputMint,
		"amount":       amount,
		"slippage_bps": slippageBps,
	}).Info("swap confirmed")

	return &SwapResult{
		Signature:            signature,
		RealizedOutputAmount: quote.OutAmountUint(),
		PriceImpact:          quote.PriceImpact(),
	}, nil
}
