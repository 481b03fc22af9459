package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"soltrader/internal/engine"
	"soltrader/internal/models"
	"soltrader/internal/store"
	"soltrader/pkg/config"
	"soltrader/pkg/jupiter"
	"soltrader/pkg/marketdata"
	"soltrader/pkg/solana"
)

const reconcileInterval = time.Minute

func main() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	cfg := config.Load()

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ (optional)
	var publisher engine.EventPublisher
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer config.RabbitMQ.Close()

		p, err := config.NewPublisher(config.TradeEventQueue)
		if err != nil {
			log.Fatal("Failed to create trade event publisher: ", err)
		}
		defer p.Close()
		publisher = p
	}

	signer := loadSigner(cfg)
	log.Infof("Trading wallet: %s", signer.PublicKey())

	rpcClient := rpc.New(cfg.SolanaRPC)
	jupiterClient := jupiter.NewClient(rpcClient, cfg.SwapTimeout)

	var stream *marketdata.PumpPortalStream
	if cfg.EnablePumpFeed {
		stream = marketdata.NewPumpPortalStream(cfg.SolPriceUsd)
		stream.Start()
		defer stream.Stop()
	}
	adapter := marketdata.NewAdapter(
		marketdata.NewBirdeyeClient(cfg.BirdeyeAPIKey, cfg.RequestTimeout),
		marketdata.NewDexScreenerClient(cfg.RequestTimeout),
		stream,
		cfg.RequestTimeout,
	)

	st := store.New(config.DB)
	executor := engine.NewExecutor(
		st,
		engine.NewEvaluator(adapter),
		engine.NewJupiterSwapper(jupiterClient, signer),
		publisher,
		engine.ExecutorOptions{
			DailyTradeCap:  cfg.DailyTradeCap,
			Cooldown:       cfg.StrategyCooldown,
			StrategyBudget: cfg.StrategyBudget,
			PollsPerMinute: cfg.PollsPerMinute,
		},
	)

	go runReconciler(st, rpcClient, cfg.ConfirmTimeout)

	c := cron.New()
	if _, err := c.AddFunc(cfg.PollCronSpec, func() {
		pollAllUsers(st, executor)
	}); err != nil {
		log.Fatal("Invalid poll cron spec: ", err)
	}

	log.Infof("Strategy worker started, polling on %q", cfg.PollCronSpec)
	c.Run()
}

// pollAllUsers runs one evaluation pass for every user that has at least
// one active strategy. Users are independent; one user's failure never
// blocks the rest.
func pollAllUsers(st *store.Store, executor *engine.Executor) {
	users, err := st.ListUsersWithActiveStrategies()
	if err != nil {
		log.Errorf("Failed to list users: %v", err)
		return
	}

	for _, userID := range users {
		results, err := executor.CheckAndExecuteStrategies(context.Background(), userID)
		if err != nil {
			// an overlapping poll for the same user is expected when a swap
			// outlives the tick interval
			if errors.Is(err, engine.ErrPollInProgress) {
				log.WithField("user_id", userID).Debug("poll still running, skipping tick")
				continue
			}
			log.WithField("user_id", userID).Errorf("Poll failed: %v", err)
			continue
		}

		for _, r := range results {
			if r.Action == engine.ActionTradeExecuted {
				log.WithFields(log.Fields{
					"user_id":     userID,
					"strategy_id": r.StrategyID,
					"trade_id":    r.TradeID,
					"signature":   r.Signature,
				}).Info("Trade executed")
			}
		}
	}
}

// runReconciler finalizes trades that timed out waiting for confirmation
// but have a real signature on chain. The execution loop already marked
// them FAILED-or-PENDING; this pass settles the ones the chain did land.
func runReconciler(st *store.Store, rpcClient *rpc.Client, confirmTimeout time.Duration) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-confirmTimeout)

		var trades []models.Trade
		if pending, err := st.ListPendingTradesBefore(cutoff); err != nil {
			log.Errorf("Reconciler query failed: %v", err)
		} else {
			trades = append(trades, pending...)
		}
		if timedOut, err := st.ListConfirmTimeoutTrades(cutoff); err != nil {
			log.Errorf("Reconciler query failed: %v", err)
		} else {
			trades = append(trades, timedOut...)
		}

		for _, trade := range trades {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status, statusErr := solana.CheckTransactionStatus(ctx, rpcClient, trade.Signature)
			cancel()

			switch status {
			case "confirmed", "finalized":
				if err := st.UpdateTrade(trade.ID, map[string]any{
					"status": models.TradeStatusConfirmed,
					"error":  "",
				}); err != nil {
					log.WithField("trade_id", trade.ID).Errorf("Failed to confirm trade: %v", err)
				} else {
					log.WithField("trade_id", trade.ID).Info("Reconciled trade to CONFIRMED")
				}
			case "error":
				if err := st.UpdateTrade(trade.ID, map[string]any{
					"status": models.TradeStatusFailed,
					"error":  statusErr.Error(),
				}); err != nil {
					log.WithField("trade_id", trade.ID).Errorf("Failed to fail trade: %v", err)
				}
			default:
				if statusErr != nil {
					log.WithField("trade_id", trade.ID).Warnf("Status check failed: %v", statusErr)
				}
			}
		}
	}
}

func loadSigner(cfg *config.Config) *solana.Signer {
	if cfg.KeystorePath != "" {
		signer, err := solana.NewSignerFromKeystore(cfg.KeystorePath, cfg.KeystorePass)
		if err != nil {
			log.Fatal("Failed to load keystore: ", err)
		}
		return signer
	}
	if cfg.WalletKey != "" {
		signer, err := solana.NewSignerFromBase58(cfg.WalletKey)
		if err != nil {
			log.Fatal("Failed to parse wallet key: ", err)
		}
		return signer
	}
	log.Fatal("No wallet configured: set KEYSTORE_PATH or WALLET_PRIVATE_KEY")
	return nil
}
