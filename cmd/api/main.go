package main

import (
	"os"

	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	"soltrader/internal/engine"
	"soltrader/internal/routes"
	"soltrader/internal/store"
	"soltrader/pkg/config"
	"soltrader/pkg/jupiter"
	"soltrader/pkg/marketdata"
	"soltrader/pkg/solana"
)

func main() {
	cfg := config.Load()

	// Initialize database
	config.InitDB()
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		config.ExecuteMigrations()
	}

	// Initialize RabbitMQ (optional, will log warning if not configured)
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
	} else {
		log.Info("RabbitMQ not configured, trade events disabled")
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

	// Set up router
	r := routes.SetupRouter(cfg, st, executor)

	// Start server
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

// loadSigner prefers the encrypted keystore over a raw base58 key from
// the environment.
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
