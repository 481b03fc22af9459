package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"soltrader/internal/models"
	"soltrader/internal/store"
)

// WithdrawalRequest represents the request body for creating a withdrawal
type WithdrawalRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Fee         float64 `json:"fee"`
	Destination string  `json:"destination" binding:"required"`
}

// CreateWithdrawal returns the handler that creates a withdrawal.
// The daily per-user cap uses the same count-then-act-in-one-transaction
// guard as the trade cap.
func CreateWithdrawal(st *store.Store, dailyCap int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request WithdrawalRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		withdrawal := models.Withdrawal{
			UserID:      request.UserID,
			Reference:   uuid.NewString(),
			Amount:      request.Amount,
			Fee:         request.Fee,
			Destination: request.Destination,
			Status:      models.WithdrawalStatusPending,
		}

		if err := st.CreateWithdrawal(&withdrawal, dailyCap); err != nil {
			if errors.Is(err, store.ErrDailyLimit) {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, withdrawal)
	}
}

// ListWithdrawalsByUser returns the handler that lists a user's withdrawals
func ListWithdrawalsByUser(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		withdrawals, err := st.ListWithdrawals(c.Param("user_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, withdrawals)
	}
}
