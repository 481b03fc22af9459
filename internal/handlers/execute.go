package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"soltrader/internal/engine"
)

// ExecuteResponse is the polling endpoint's envelope. Partial failures
// stay inside the per-strategy result list; only a failure to reach the
// store at all produces an error-shaped top-level response.
type ExecuteResponse struct {
	UserID        string                     `json:"user_id"`
	TradeExecuted bool                       `json:"trade_executed"`
	Checked       int                        `json:"checked"`
	Results       []engine.PerStrategyResult `json:"results"`
}

// ExecuteStrategies returns the handler behind GET /strategies/execute.
// The endpoint is meant to be polled every 10-30 seconds per user; each
// call runs one sequential evaluation pass over the user's active
// strategies.
func ExecuteStrategies(executor *engine.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		results, err := executor.CheckAndExecuteStrategies(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, engine.ErrPollInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		executed := false
		for _, r := range results {
			if r.Action == engine.ActionTradeExecuted {
				executed = true
				break
			}
		}

		c.JSON(http.StatusOK, ExecuteResponse{
			UserID:        userID,
			TradeExecuted: executed,
			Checked:       len(results),
			Results:       results,
		})
	}
}
