package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soltrader/internal/models"
	"soltrader/pkg/jupiter"
	"soltrader/pkg/marketdata"
)

type fakeStore struct {
	mu         sync.Mutex
	strategies []models.Strategy
	trades     []*models.Trade
	nextID     uint
	listErr    error
}

func (f *fakeStore) ListActiveStrategies(userID string) ([]models.Strategy, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Strategy
	for _, s := range f.strategies {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTrade(trade *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	trade.ID = f.nextID
	trade.CreatedAt = time.Now()
	stored := *trade
	f.trades = append(f.trades, &stored)
	return nil
}

func (f *fakeStore) UpdateTrade(id uint, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.trades {
		if tr.ID != id {
			continue
		}
		if v, ok := patch["status"]; ok {
			tr.Status = v.(string)
		}
		if v, ok := patch["signature"]; ok {
			tr.Signature = v.(string)
		}
		if v, ok := patch["output_amount"]; ok {
			tr.OutputAmount = v.(float64)
		}
		if v, ok := patch["price_impact"]; ok {
			tr.PriceImpact = v.(float64)
		}
		if v, ok := patch["error"]; ok {
			tr.Error = v.(string)
		}
		return nil
	}
	return errors.New("trade not found")
}

func (f *fakeStore) CountTradesSince(userID string, since time.Time, excludeStatus string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, tr := range f.trades {
		if tr.UserID == userID && !tr.CreatedAt.Before(since) && tr.Status != excludeStatus {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) LastTradeAt(strategyID uint, excludeStatus string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, tr := range f.trades {
		if tr.StrategyID == nil || *tr.StrategyID != strategyID || tr.Status == excludeStatus {
			continue
		}
		t := tr.CreatedAt
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return last, nil
}

func (f *fakeStore) SetStrategyActive(id uint, active bool) error {
	for i := range f.strategies {
		if f.strategies[i].ID == id {
			f.strategies[i].IsActive = active
			return nil
		}
	}
	return errors.New("strategy not found")
}

func (f *fakeStore) tradeByID(id uint) *models.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.trades {
		if tr.ID == id {
			copy := *tr
			return &copy
		}
	}
	return nil
}

type fakeSwapper struct {
	store         *fakeStore
	result        *jupiter.SwapResult
	err           error
	calls         int
	pendingAtCall int
}

func (f *fakeSwapper) ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.SwapResult, error) {
	f.calls++
	if f.store != nil {
		// observe how many PENDING rows exist at swap time
		f.store.mu.Lock()
		for _, tr := range f.store.trades {
			if tr.Status == models.TradeStatusPending {
				f.pendingAtCall++
			}
		}
		f.store.mu.Unlock()
	}
	return f.result, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []TradeEvent
}

func (f *fakePublisher) Publish(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload.(TradeEvent))
	return nil
}

func sniperStrategy(id uint, userID string) models.Strategy {
	raw, _ := json.Marshal(SniperConfig{
		MaxAgeMinutes: 30,
		MinLiquidity:  5000,
		Amount:        0.1,
		SlippageBps:   300,
	})
	return models.Strategy{
		ID:       id,
		UserID:   userID,
		Name:     "sniper",
		Type:     models.StrategyTypeSniper,
		Config:   raw,
		IsActive: true,
	}
}

func spotStrategy(id uint, userID string, oneShot bool) models.Strategy {
	raw, _ := json.Marshal(SpotConfig{
		InputToken:     SolMint,
		OutputToken:    "TokenMint111",
		InputDecimals:  9,
		OutputDecimals: 6,
		Amount:         1.0,
		Direction:      models.DirectionBuy,
		SlippageBps:    50,
		OneShot:        &oneShot,
	})
	return models.Strategy{
		ID:       id,
		UserID:   userID,
		Name:     "spot",
		Type:     models.StrategyTypeSpot,
		Config:   raw,
		IsActive: true,
	}
}

func matchingPair() marketdata.Pair {
	return marketdata.Pair{
		TokenAddress: "FreshMint111",
		Name:         "fresh coin",
		ListedAt:     time.Now().Add(-5 * time.Minute),
		Liquidity:    9000,
		Volume24h:    20000,
		MarketCap:    30000,
	}
}

func newTestExecutor(store *fakeStore, market *fakeMarket, swapper Swapper, publisher EventPublisher, opts ExecutorOptions) *Executor {
	if opts.PollsPerMinute == 0 {
		opts.PollsPerMinute = 6000 // keep the rate gate out of the way
	}
	return NewExecutor(store, NewEvaluator(market), swapper, publisher, opts)
}

func TestCheckAndExecuteStrategies(t *testing.T) {
	t.Run("Match Creates Pending Then Confirms", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		swapper := &fakeSwapper{
			store: store,
			result: &jupiter.SwapResult{
				Signature:            "sig111",
				RealizedOutputAmount: 42000000,
				PriceImpact:          0.002,
			},
		}
		publisher := &fakePublisher{}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, publisher, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionTradeExecuted, results[0].Action)
		assert.Equal(t, "sig111", results[0].Signature)

		// exactly one trade row, PENDING before the swap ran
		require.Len(t, store.trades, 1)
		assert.Equal(t, 1, swapper.calls)
		assert.Equal(t, 1, swapper.pendingAtCall)

		trade := store.tradeByID(results[0].TradeID)
		require.NotNil(t, trade)
		assert.Equal(t, models.TradeStatusConfirmed, trade.Status)
		assert.Equal(t, "sig111", trade.Signature)
		assert.InDelta(t, 42.0, trade.OutputAmount, 1e-9) // 42000000 at 6 decimals

		require.Len(t, publisher.events, 1)
		assert.Equal(t, models.TradeStatusConfirmed, publisher.events[0].Status)
	})

	t.Run("Swap Failure Marks Trade Failed Without Retry", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		swapper := &fakeSwapper{store: store, err: jupiter.ErrNoRoute}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionError, results[0].Action)
		assert.Equal(t, 1, swapper.calls)

		require.Len(t, store.trades, 1)
		assert.Equal(t, models.TradeStatusFailed, store.trades[0].Status)
		assert.NotEmpty(t, store.trades[0].Error)
	})

	t.Run("No Trade Stays Pending After The Pass", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig222", RealizedOutputAmount: 1, PriceImpact: 0},
		}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		_, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		for _, tr := range store.trades {
			assert.NotEqual(t, models.TradeStatusPending, tr.Status)
		}
	})

	t.Run("Daily Cap Blocks New Trades", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		// five confirmed trades already today
		for i := 0; i < 5; i++ {
			trade := &models.Trade{UserID: "user-1", Status: models.TradeStatusConfirmed, Signature: "old"}
			require.NoError(t, store.CreateTrade(trade))
		}
		swapper := &fakeSwapper{store: store}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionError, results[0].Action)
		assert.Contains(t, results[0].Detail, "daily limit")
		assert.Equal(t, 0, swapper.calls)
		assert.Len(t, store.trades, 5) // nothing new created
	})

	t.Run("Failed Trades Do Not Count Toward The Cap", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		for i := 0; i < 5; i++ {
			trade := &models.Trade{UserID: "user-1", Status: models.TradeStatusFailed, Signature: "old"}
			require.NoError(t, store.CreateTrade(trade))
		}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig333", RealizedOutputAmount: 1, PriceImpact: 0},
		}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionTradeExecuted, results[0].Action)
	})

	t.Run("One Strategy Error Never Aborts The Batch", func(t *testing.T) {
		broken := models.Strategy{
			ID:       1,
			UserID:   "user-1",
			Name:     "broken",
			Type:     models.StrategyTypeSniper,
			Config:   json.RawMessage(`{"bogus": true}`),
			IsActive: true,
		}
		store := &fakeStore{strategies: []models.Strategy{broken, sniperStrategy(2, "user-1")}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig444", RealizedOutputAmount: 1, PriceImpact: 0},
		}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, ActionError, results[0].Action)
		assert.Contains(t, results[0].Detail, "invalid config")
		assert.Equal(t, ActionTradeExecuted, results[1].Action)
	})

	t.Run("Data Unavailable Is A Per Strategy Error", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		swapper := &fakeSwapper{store: store}
		ex := newTestExecutor(store, &fakeMarket{err: errors.New("timeout")}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionError, results[0].Action)
		assert.Contains(t, results[0].Detail, "data unavailable")
		assert.Empty(t, store.trades)
	})

	t.Run("No Opportunity When Nothing Matches", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		ex := newTestExecutor(store, &fakeMarket{}, &fakeSwapper{store: store}, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionNoOpportunity, results[0].Action)
	})

	t.Run("Spot One Shot Deactivates After Confirmation", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{spotStrategy(1, "user-1", true)}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig555", RealizedOutputAmount: 5000000, PriceImpact: 0},
		}
		ex := newTestExecutor(store, &fakeMarket{}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionTradeExecuted, results[0].Action)
		assert.False(t, store.strategies[0].IsActive)
	})

	t.Run("Repeating Spot Stays Active", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{spotStrategy(1, "user-1", false)}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig666", RealizedOutputAmount: 5000000, PriceImpact: 0},
		}
		ex := newTestExecutor(store, &fakeMarket{}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		_, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, store.strategies[0].IsActive)
	})

	t.Run("Cooldown Skips Recently Traded Strategy", func(t *testing.T) {
		strategy := sniperStrategy(1, "user-1")
		store := &fakeStore{strategies: []models.Strategy{strategy}}
		strategyID := strategy.ID
		trade := &models.Trade{UserID: "user-1", StrategyID: &strategyID, Status: models.TradeStatusConfirmed, Signature: "recent"}
		require.NoError(t, store.CreateTrade(trade))

		swapper := &fakeSwapper{store: store}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil,
			ExecutorOptions{DailyTradeCap: 5, Cooldown: 5 * time.Minute})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionError, results[0].Action)
		assert.Contains(t, results[0].Detail, "cooldown")
		assert.Equal(t, 0, swapper.calls)
	})

	t.Run("Rate Limited Strategy Reports Error Not Failure", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{
			sniperStrategy(1, "user-1"),
			sniperStrategy(2, "user-1"),
			sniperStrategy(3, "user-1"),
		}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig777", RealizedOutputAmount: 1, PriceImpact: 0},
		}
		// burst of two, effectively no refill within the test
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil,
			ExecutorOptions{DailyTradeCap: 10, PollsPerMinute: 0.0001})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, ActionTradeExecuted, results[0].Action)
		assert.Equal(t, ActionTradeExecuted, results[1].Action)
		assert.Equal(t, ActionError, results[2].Action)
		assert.Contains(t, results[2].Detail, "rate limit")
		assert.Equal(t, 2, swapper.calls)
		assert.Len(t, store.trades, 2) // the gated strategy created nothing
	})

	t.Run("Conditional Execution Records A Spot Trade", func(t *testing.T) {
		raw, err := json.Marshal(ConditionalConfig{
			TokenAddress: "TokenMint111",
			Indicator:    IndicatorPrice,
			Timeframe:    "1H",
			Trigger:      TriggerPriceAbove,
			Value:        1,
			Amount:       0.5,
			SlippageBps:  100,
		})
		require.NoError(t, err)
		conditional := models.Strategy{
			ID:       1,
			UserID:   "user-1",
			Name:     "conditional",
			Type:     models.StrategyTypeConditional,
			Config:   raw,
			IsActive: true,
		}
		store := &fakeStore{strategies: []models.Strategy{conditional}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig888", RealizedOutputAmount: 1, PriceImpact: 0},
		}
		market := &fakeMarket{candles: []marketdata.Candle{{Close: 1.5}, {Close: 2}}}
		ex := newTestExecutor(store, market, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionTradeExecuted, results[0].Action)

		require.Len(t, store.trades, 1)
		assert.Equal(t, models.StrategyTypeSpot, store.trades[0].Type)
	})

	t.Run("Concurrent Poll For Same User Is Rejected", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		ex := newTestExecutor(store, &fakeMarket{}, &fakeSwapper{store: store}, nil, ExecutorOptions{DailyTradeCap: 5})

		require.True(t, ex.tryAcquire("user-1"))
		_, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		assert.ErrorIs(t, err, ErrPollInProgress)
		ex.release("user-1")

		// other users are unaffected
		_, err = ex.CheckAndExecuteStrategies(context.Background(), "user-2")
		assert.NoError(t, err)
	})

	t.Run("Store Failure Is The Only Fatal Case", func(t *testing.T) {
		store := &fakeStore{listErr: errors.New("db down")}
		ex := newTestExecutor(store, &fakeMarket{}, &fakeSwapper{store: store}, nil, ExecutorOptions{DailyTradeCap: 5})

		_, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		assert.Error(t, err)
	})

	t.Run("Confirmation Timeout Keeps The Signature", func(t *testing.T) {
		store := &fakeStore{strategies: []models.Strategy{sniperStrategy(1, "user-1")}}
		swapper := &fakeSwapper{
			store:  store,
			result: &jupiter.SwapResult{Signature: "sig-indeterminate", RealizedOutputAmount: 0, PriceImpact: 0.01},
			err:    jupiter.ErrConfirmTimeout,
		}
		ex := newTestExecutor(store, &fakeMarket{pairs: []marketdata.Pair{matchingPair()}}, swapper, nil, ExecutorOptions{DailyTradeCap: 5})

		results, err := ex.CheckAndExecuteStrategies(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ActionError, results[0].Action)

		require.Len(t, store.trades, 1)
		assert.Equal(t, models.TradeStatusFailed, store.trades[0].Status)
		assert.Equal(t, "sig-indeterminate", store.trades[0].Signature)
	})
}
