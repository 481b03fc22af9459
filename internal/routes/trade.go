package routes

import (
	"github.com/gin-gonic/gin"

	"soltrader/internal/handlers"
)

// SetupTradeRoutes sets up all routes related to trade records
func SetupTradeRoutes(r *gin.Engine) {
	trades := r.Group("/trades")
	{
		trades.GET("/:id", handlers.GetTrade)
		trades.GET("/user/:user_id", handlers.ListTradesByUser)
	}
}
