package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"soltrader/internal/models"
	dbconfig "soltrader/pkg/config"
)

// ListTradesByUser returns trades filtered by user_id, newest first
func ListTradesByUser(c *gin.Context) {
	userID := c.Param("user_id")

	var trades []models.Trade
	if err := dbconfig.DB.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&trades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

// GetTrade returns a specific trade by ID
func GetTrade(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var trade models.Trade
	if err := dbconfig.DB.First(&trade, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, trade)
}
