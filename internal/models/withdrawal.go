package models

import (
	"time"
)

// Withdrawal status constants
const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusFailed    = "FAILED"
)

type Withdrawal struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Reference   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Fee         float64   `gorm:"not null" json:"fee"`
	Destination string    `gorm:"type:varchar(64);not null" json:"destination"`
	Signature   string    `gorm:"type:text" json:"signature"`
	Status      string    `gorm:"size:20;not null;index" json:"status"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

func (Withdrawal) TableName() string {
	return "withdrawal"
}
