package routes

import (
	"github.com/gin-gonic/gin"

	"soltrader/internal/handlers"
	"soltrader/internal/store"
)

// SetupWithdrawalRoutes sets up all routes related to withdrawals
func SetupWithdrawalRoutes(r *gin.Engine, st *store.Store, dailyCap int) {
	withdrawals := r.Group("/withdrawals")
	{
		withdrawals.POST("", handlers.CreateWithdrawal(st, dailyCap))
		withdrawals.GET("/user/:user_id", handlers.ListWithdrawalsByUser(st))
	}
}
