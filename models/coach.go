package models

import (
	"time"

	"gorm.io/gorm"
)

// CoachNarrative AI coach narrative for one snapshot
type CoachNarrative struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index;not null"`
	RequestID string         `json:"request_id" gorm:"size:36;uniqueIndex"`
	Signature string         `json:"signature" gorm:"size:64;index;not null"`
	StartDate string         `json:"start_date" gorm:"size:10"` // YYYY-MM-DD, empty for all time
	EndDate   string         `json:"end_date" gorm:"size:10"`
	Model     string         `json:"model" gorm:"size:100"`
	Result    string         `json:"result" gorm:"type:longtext;not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (CoachNarrative) TableName() string {
	return "coach_narratives"
}
