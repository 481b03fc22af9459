package routes

import (
	"github.com/gin-gonic/gin"

	"soltrader/internal/engine"
	"soltrader/internal/handlers"
)

// SetupStrategyRoutes sets up all routes related to strategy management
// and the execution polling endpoint
func SetupStrategyRoutes(r *gin.Engine, executor *engine.Executor) {
	strategies := r.Group("/strategies")
	{
		// Execution endpoint first so the router never treats
		// "execute" as an :id
		strategies.GET("/execute", handlers.ExecuteStrategies(executor))

		// Standard CRUD operations
		strategies.GET("", handlers.ListStrategies)
		strategies.GET("/:id", handlers.GetStrategy)
		strategies.POST("", handlers.CreateStrategy)
		strategies.PUT("/:id", handlers.UpdateStrategy)
		strategies.DELETE("/:id", handlers.DeleteStrategy)

		strategies.GET("/user/:user_id", handlers.ListStrategiesByUser)
		strategies.POST("/toggle/:id", handlers.ToggleStrategy)
	}
}
