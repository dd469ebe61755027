package models

import (
	"time"

	"gorm.io/datatypes"
)

type RecommendationStatus string

const (
	RecommendationPending RecommendationStatus = "pending"
	RecommendationReady   RecommendationStatus = "ready"
	RecommendationFailed  RecommendationStatus = "failed"
)

type AIRecommendation struct {
	ID            uint                 `json:"id" gorm:"primaryKey"`
	UserID        string               `json:"user_id" gorm:"not null;size:255;index"`
	ResultID      uint                 `json:"result_id" gorm:"not null;uniqueIndex"`
	TestID        uint                 `json:"test_id" gorm:"not null;index"`
	Content       string               `json:"content" gorm:"type:text"`
	Model         string               `json:"model" gorm:"size:100"`
	Status        RecommendationStatus `json:"status" gorm:"not null;size:20;default:pending"`
	Error         *string              `json:"error,omitempty" gorm:"type:text"`
	PromptContext datatypes.JSON       `json:"prompt_context,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (AIRecommendation) TableName() string {
	return "ai_recommendations"
}
