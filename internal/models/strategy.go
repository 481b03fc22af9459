package models

import (
	"encoding/json"
	"time"
)

// Strategy type constants
const (
	StrategyTypeSniper      = "SNIPER"
	StrategyTypeSpot        = "SPOT"
	StrategyTypeConditional = "CONDITIONAL"
)

type Strategy struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	UserID      string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Type        string          `gorm:"size:20;not null" json:"type"`
	Config      json.RawMessage `gorm:"type:jsonb;not null" json:"config"`
	IsActive    bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategy"
}
