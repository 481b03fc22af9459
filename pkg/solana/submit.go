package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

const confirmPollInterval = 2 * time.Second

// DecodeTransaction decodes a base64-serialized transaction, as returned
// by the Jupiter swap API.
func DecodeTransaction(txBase64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return tx, nil
}

// SignAndSubmit signs tx with the signer, sends it, and waits for
// confirmation up to the context deadline. The signature is always
// returned once the transaction is sent, even when the confirmation
// wait times out, so a reconciler can pick it up later.
func SignAndSubmit(ctx context.Context, client *rpc.Client, signer *Signer, tx *solana.Transaction) (string, error) {
	if err := signer.SignTransaction(tx); err != nil {
		return "", err
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	log.WithField("signature", sig.String()).Info("transaction submitted")

	if err := waitForConfirmation(ctx, client, sig); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}

func waitForConfirmation(ctx context.Context, client *rpc.Client, sig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait timed out for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		res, err := client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			log.Debugf("signature status check failed: %v", err)
			continue
		}
		if len(res.Value) == 0 || res.Value[0] == nil {
			continue
		}

		status := res.Value[0]
		if status.Err != nil {
			errJSON, _ := json.Marshal(status.Err)
			return fmt.Errorf("transaction failed on chain: %s", string(errJSON))
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return nil
		}
	}
}

// CheckTransactionStatus returns "confirmed", "finalized", "pending" or
// "error" for a signature. Used by the pending-trade reconciler.
func CheckTransactionStatus(ctx context.Context, client *rpc.Client, signature string) (string, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature format: %w", err)
	}

	res, err := client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return "pending", nil
	}

	status := res.Value[0]
	if status.Err != nil {
		errJSON, _ := json.Marshal(status.Err)
		return "error", fmt.Errorf("transaction failed: %s", string(errJSON))
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return "finalized", nil
	case rpc.ConfirmationStatusConfirmed:
		return "confirmed", nil
	default:
		return "pending", nil
	}
}
