package models

import (
	"time"
)

// Trade status constants
const (
	TradeStatusPending   = "PENDING"
	TradeStatusConfirmed = "CONFIRMED"
	TradeStatusFailed    = "FAILED"
)

// Trade direction constants
const (
	DirectionBuy   = "BUY"
	DirectionSell  = "SELL"
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// PendingSignature is stored in the signature column until the swap
// layer returns the real transaction signature.
const PendingSignature = "pending"

type Trade struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	UserID       string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	StrategyID   *uint      `gorm:"index" json:"strategy_id"`
	Signature    string     `gorm:"type:text;not null" json:"signature"`
	Type         string     `gorm:"size:20;not null" json:"type"`
	Direction    string     `gorm:"size:20;not null" json:"direction"`
	InputToken   string     `gorm:"type:varchar(64);not null" json:"input_token"`
	OutputToken  string     `gorm:"type:varchar(64);not null" json:"output_token"`
	InputAmount  float64    `gorm:"not null" json:"input_amount"`
	OutputAmount float64    `json:"output_amount"`
	PriceUsd     float64    `json:"price_usd"`
	PriceImpact  float64    `json:"price_impact"`
	PnlUsd       *float64   `json:"pnl_usd"`
	TakeProfit   *float64   `json:"take_profit"`
	StopLoss     *float64   `json:"stop_loss"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
	ClosedAt     *time.Time `json:"closed_at"`
}

func (Trade) TableName() string {
	return "trade"
}
