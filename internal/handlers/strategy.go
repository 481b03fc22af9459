package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"soltrader/internal/engine"
	"soltrader/internal/models"
	dbconfig "soltrader/pkg/config"
)

// StrategyRequest represents the request body for creating/updating a strategy
type StrategyRequest struct {
	UserID      string          `json:"user_id" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Type        string          `json:"type" binding:"required"`
	Config      json.RawMessage `json:"config" binding:"required"`
	IsActive    *bool           `json:"is_active"`
}

// ListStrategies returns all strategies
func ListStrategies(c *gin.Context) {
	var strategies []models.Strategy
	if err := dbconfig.DB.Find(&strategies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategies)
}

// ListStrategiesByUser returns strategies filtered by user_id
func ListStrategiesByUser(c *gin.Context) {
	userID := c.Param("user_id")

	var strategies []models.Strategy
	if err := dbconfig.DB.Where("user_id = ?", userID).Find(&strategies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategies)
}

// GetStrategy returns a specific strategy by ID
func GetStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// CreateStrategy creates a new strategy. The typed config is validated
// here, at the creation boundary, so evaluation never sees a malformed
// config for a freshly created strategy.
func CreateStrategy(c *gin.Context) {
	var request StrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := engine.ParseConfig(request.Type, request.Config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strategy := models.Strategy{
		UserID:      request.UserID,
		Name:        request.Name,
		Description: request.Description,
		Type:        request.Type,
		Config:      request.Config,
		IsActive:    true,
	}
	if request.IsActive != nil {
		strategy.IsActive = *request.IsActive
	}

	if err := dbconfig.DB.Create(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, strategy)
}

// UpdateStrategy updates an existing strategy
func UpdateStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var request StrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := engine.ParseConfig(request.Type, request.Config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	strategy.Name = request.Name
	strategy.Description = request.Description
	strategy.Type = request.Type
	strategy.Config = request.Config
	if request.IsActive != nil {
		strategy.IsActive = *request.IsActive
	}

	if err := dbconfig.DB.Save(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// ToggleStrategy flips the active flag
func ToggleStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	strategy.IsActive = !strategy.IsActive
	if err := dbconfig.DB.Save(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// DeleteStrategy deletes a strategy by ID
func DeleteStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	if err := dbconfig.DB.Delete(&models.Strategy{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Strategy deleted"})
}
