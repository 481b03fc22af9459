package engine

import (
	"context"

	"soltrader/pkg/jupiter"
	"soltrader/pkg/solana"
)

// JupiterSwapper binds the Jupiter client to one signing wallet,
// satisfying the Swapper contract the loop consumes.
type JupiterSwapper struct {
	client *jupiter.Client
	signer *solana.Signer
}

func NewJupiterSwapper(client *jupiter.Client, signer *solana.Signer) *JupiterSwapper {
	return &JupiterSwapper{client: client, signer: signer}
}

func (s *JupiterSwapper) ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.SwapResult, error) {
	return s.client.ExecuteSwap(ctx, s.signer, inputMint, outputMint, amount, slippageBps)
}
