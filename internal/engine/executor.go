package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"soltrader/internal/models"
	"soltrader/pkg/jupiter"
)

// Store is the persistence contract the loop needs. The gorm-backed
// implementation lives in internal/store.
type Store interface {
	ListActiveStrategies(userID string) ([]models.Strategy, error)
	CreateTrade(trade *models.Trade) error
	UpdateTrade(id uint, patch map[string]any) error
	CountTradesSince(userID string, since time.Time, excludeStatus string) (int64, error)
	LastTradeAt(strategyID uint, excludeStatus string) (*time.Time, error)
	SetStrategyActive(id uint, active bool) error
}

// Swapper executes one swap end to end and reports a definite outcome.
type Swapper interface {
	ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.SwapResult, error)
}

// EventPublisher receives terminal trade events. May be nil.
type EventPublisher interface {
	Publish(payload any) error
}

// ErrPollInProgress is returned when a poll for the same user is already
// running. Trade submission per user must stay serialized.
var ErrPollInProgress = errors.New("poll already in progress for user")

// ExecutorOptions carries the loop's risk controls.
type ExecutorOptions struct {
	DailyTradeCap  int
	Cooldown       time.Duration
	StrategyBudget time.Duration
	PollsPerMinute float64
}

// Executor runs one sequential evaluation-and-maybe-execute pass over a
// user's active strategies per invocation. Concurrent polls for the same
// user are rejected rather than queued; different users proceed
// independently.
type Executor struct {
	store     Store
	evaluator *Evaluator
	swapper   Swapper
	publisher EventPublisher
	opts      ExecutorOptions
	now       func() time.Time

	mu       sync.Mutex
	running  map[string]bool
	limiters map[string]*rate.Limiter
}

// NewExecutor wires the loop. publisher may be nil.
func NewExecutor(store Store, evaluator *Evaluator, swapper Swapper, publisher EventPublisher, opts ExecutorOptions) *Executor {
	if opts.DailyTradeCap <= 0 {
		opts.DailyTradeCap = 10
	}
	if opts.StrategyBudget <= 0 {
		opts.StrategyBudget = 60 * time.Second
	}
	if opts.PollsPerMinute <= 0 {
		opts.PollsPerMinute = 6
	}
	return &Executor{
		store:     store,
		evaluator: evaluator,
		swapper:   swapper,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		running:   make(map[string]bool),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// CheckAndExecuteStrategies runs one poll for the user. The only fatal
// case is failing to list strategies at all; everything a single strategy
// does resolves to one PerStrategyResult.
func (e *Executor) CheckAndExecuteStrategies(ctx context.Context, userID string) ([]PerStrategyResult, error) {
	if !e.tryAcquire(userID) {
		return nil, ErrPollInProgress
	}
	defer e.release(userID)

	strategies, err := e.store.ListActiveStrategies(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}

	results := make([]PerStrategyResult, 0, len(strategies))
	for i := range strategies {
		strategy := &strategies[i]
		if !strategy.IsActive {
			continue
		}

		strategyCtx, cancel := context.WithTimeout(ctx, e.opts.StrategyBudget)
		result := e.runStrategy(strategyCtx, strategy)
		cancel()

		results = append(results, result)
	}
	return results, nil
}

// runStrategy never returns an error: every code path resolves to a
// result tag so one strategy cannot abort the batch.
func (e *Executor) runStrategy(ctx context.Context, strategy *models.Strategy) PerStrategyResult {
	result := PerStrategyResult{
		StrategyID:   strategy.ID,
		StrategyName: strategy.Name,
	}

	// the global per-user gate skips execution, never aborts the poll
	if !e.limiter(strategy.UserID).Allow() {
		result.Action = ActionError
		result.Detail = "rate limit exceeded"
		return result
	}

	cfg, err := ParseConfig(strategy.Type, strategy.Config)
	if err != nil {
		// strategy stays active so the user can fix the config
		result.Action = ActionError
		result.Detail = fmt.Sprintf("invalid config: %v", err)
		return result
	}

	if e.opts.Cooldown > 0 {
		lastAt, err := e.store.LastTradeAt(strategy.ID, models.TradeStatusFailed)
		if err == nil && lastAt != nil && e.now().Sub(*lastAt) < e.opts.Cooldown {
			result.Action = ActionError
			result.Detail = "cooldown: strategy traded recently"
			return result
		}
	}

	instructions, err := e.evaluator.Evaluate(ctx, strategy, cfg)
	if err != nil {
		result.Action = ActionError
		if errors.Is(err, ErrDataUnavailable) {
			result.Detail = fmt.Sprintf("data unavailable: %v", err)
		} else {
			result.Detail = err.Error()
		}
		return result
	}
	if len(instructions) == 0 {
		result.Action = ActionNoOpportunity
		return result
	}

	// one trade per strategy per tick: the first surviving opportunity
	// wins, the rest are re-evaluated on the next poll
	instruction := instructions[0]

	capped, err := e.dailyCapReached(strategy.UserID)
	if err != nil {
		result.Action = ActionError
		result.Detail = fmt.Sprintf("daily cap check failed: %v", err)
		return result
	}
	if capped {
		result.Action = ActionError
		result.Detail = "daily limit reached"
		return result
	}

	trade, err := e.executeTrade(ctx, strategy, cfg, instruction)
	if trade != nil {
		result.TradeID = trade.ID
		result.Signature = trade.Signature
	}
	if err != nil {
		result.Action = ActionError
		result.Detail = err.Error()
		return result
	}

	result.Action = ActionTradeExecuted
	result.Detail = fmt.Sprintf("%s %g %s -> %s", instruction.Direction, instruction.Amount, instruction.InputToken, instruction.OutputToken)
	return result
}

// executeTrade creates the PENDING row before touching the swap layer
// (the row is the at-most-once guard), then drives it to a terminal
// status. A non-nil trade is always in CONFIRMED or FAILED on return.
func (e *Executor) executeTrade(ctx context.Context, strategy *models.Strategy, cfg *StrategyConfig, instruction TradeInstruction) (*models.Trade, error) {
	strategyID := strategy.ID
	trade := &models.Trade{
		UserID:      strategy.UserID,
		StrategyID:  &strategyID,
		Signature:   models.PendingSignature,
		Type:        tradeType(strategy.Type),
		Direction:   instruction.Direction,
		InputToken:  instruction.InputToken,
		OutputToken: instruction.OutputToken,
		InputAmount: instruction.Amount,
		TakeProfit:  instruction.TakeProfit,
		StopLoss:    instruction.StopLoss,
		Status:      models.TradeStatusPending,
	}
	if err := e.store.CreateTrade(trade); err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	amount := ToSmallestUnit(instruction.Amount, instruction.InputDecimals)
	swap, err := e.swapper.ExecuteSwap(ctx, instruction.InputToken, instruction.OutputToken, amount, instruction.SlippageBps)
	if err != nil {
		patch := map[string]any{
			"status": models.TradeStatusFailed,
			"error":  err.Error(),
		}
		// an indeterminate confirmation still records its signature so a
		// reconciler can find the transaction later
		if swap != nil && swap.Signature != "" {
			patch["signature"] = swap.Signature
		}
		if updateErr := e.store.UpdateTrade(trade.ID, patch); updateErr != nil {
			log.WithField("trade_id", trade.ID).Errorf("failed to mark trade FAILED: %v", updateErr)
		}
		trade.Status = models.TradeStatusFailed
		if swap != nil {
			trade.Signature = swap.Signature
		}
		e.publishEvent(trade, err.Error())
		return trade, fmt.Errorf("swap failed: %w", err)
	}

	realized := FromSmallestUnit(swap.RealizedOutputAmount, instruction.OutputDecimals)
	patch := map[string]any{
		"status":        models.TradeStatusConfirmed,
		"signature":     swap.Signature,
		"output_amount": realized,
		"price_impact":  swap.PriceImpact,
	}
	if err := e.store.UpdateTrade(trade.ID, patch); err != nil {
		log.WithField("trade_id", trade.ID).Errorf("failed to mark trade CONFIRMED: %v", err)
	}
	trade.Status = models.TradeStatusConfirmed
	trade.Signature = swap.Signature
	trade.OutputAmount = realized

	if cfg.Spot != nil && cfg.Spot.IsOneShot() {
		if err := e.store.SetStrategyActive(strategy.ID, false); err != nil {
			log.WithField("strategy_id", strategy.ID).Errorf("failed to deactivate one-shot strategy: %v", err)
		}
	}

	e.publishEvent(trade, "")
	return trade, nil
}

// tradeType maps a strategy type to the trade record's type. Conditional
// strategies execute plain spot swaps once their trigger fires.
func tradeType(strategyType string) string {
	if strategyType == models.StrategyTypeConditional {
		return models.StrategyTypeSpot
	}
	return strategyType
}

func (e *Executor) dailyCapReached(userID string) (bool, error) {
	now := e.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := e.store.CountTradesSince(userID, midnight, models.TradeStatusFailed)
	if err != nil {
		return false, err
	}
	return count >= int64(e.opts.DailyTradeCap), nil
}

func (e *Executor) publishEvent(trade *models.Trade, detail string) {
	if e.publisher == nil {
		return
	}
	var strategyID uint
	if trade.StrategyID != nil {
		strategyID = *trade.StrategyID
	}
	event := TradeEvent{
		TradeID:     trade.ID,
		UserID:      trade.UserID,
		StrategyID:  strategyID,
		Status:      trade.Status,
		Signature:   trade.Signature,
		InputToken:  trade.InputToken,
		OutputToken: trade.OutputToken,
		Amount:      trade.InputAmount,
		Detail:      detail,
	}
	if err := e.publisher.Publish(event); err != nil {
		log.Warnf("failed to publish trade event: %v", err)
	}
}

func (e *Executor) tryAcquire(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[userID] {
		return false
	}
	e.running[userID] = true
	return true
}

func (e *Executor) release(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, userID)
}

func (e *Executor) limiter(userID string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	limiter, ok := e.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(e.opts.PollsPerMinute/60.0), 2)
		e.limiters[userID] = limiter
	}
	return limiter
}
