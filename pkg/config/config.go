package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the service reads from the environment.
// It is loaded once in main and passed into adapter constructors so the
// adapters themselves stay free of process-global state.
type Config struct {
	// HTTP
	Port string

	// Market data
	BirdeyeAPIKey  string
	RequestTimeout time.Duration
	EnablePumpFeed bool
	SolPriceUsd    float64

	// Swap execution
	SolanaRPC      string
	WalletKey      string // base58 private key; keystore file takes priority
	KeystorePath   string
	KeystorePass   string
	SwapTimeout    time.Duration
	ConfirmTimeout time.Duration

	// Engine risk controls
	DailyTradeCap      int
	DailyWithdrawalCap int
	StrategyCooldown   time.Duration
	StrategyBudget     time.Duration
	PollsPerMinute     float64

	// Worker
	PollCronSpec string
}

// Load reads the configuration from the environment, applying defaults
// for everything optional.
func Load() *Config {
	return &Config{
		Port: envOr("PORT", "8080"),

		BirdeyeAPIKey:  os.Getenv("BIRDEYE_API_KEY"),
		RequestTimeout: envDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
		EnablePumpFeed: os.Getenv("ENABLE_PUMP_FEED") == "true",
		SolPriceUsd:    envFloat("SOL_PRICE_USD", 150),

		SolanaRPC:      envOr("SOLANA_RPC", "https://api.mainnet-beta.solana.com"),
		WalletKey:      os.Getenv("WALLET_PRIVATE_KEY"),
		KeystorePath:   os.Getenv("KEYSTORE_PATH"),
		KeystorePass:   os.Getenv("KEYSTORE_PASSWORD"),
		SwapTimeout:    envDuration("SWAP_TIMEOUT", 15*time.Second),
		ConfirmTimeout: envDuration("CONFIRM_TIMEOUT", 45*time.Second),

		DailyTradeCap:      envInt("DAILY_TRADE_CAP", 10),
		DailyWithdrawalCap: envInt("DAILY_WITHDRAWAL_CAP", 3),
		StrategyCooldown:   envDuration("STRATEGY_COOLDOWN", 5*time.Minute),
		StrategyBudget:     envDuration("STRATEGY_BUDGET", 60*time.Second),
		PollsPerMinute:     envFloat("POLLS_PER_MINUTE", 6),

		PollCronSpec: envOr("POLL_CRON_SPEC", "@every 15s"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
