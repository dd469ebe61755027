// Package events publishes and consumes domain events over watermill.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	Source  = "quiz-service"
	Version = "1.0"
)

const (
	TopicResultCompleted     = "quiz.result.completed"
	TopicGroupsGenerated     = "quiz.groups.generated"
	TopicRecommendationReady = "quiz.recommendation.ready"
)

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    Source,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

func (e *Event) Decode(dest any) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type ResultCompletedData struct {
	ResultID   uint      `json:"result_id"`
	TestID     uint      `json:"test_id"`
	UserID     string    `json:"user_id"`
	CategoryID *uint     `json:"category_id,omitempty"`
	Score      float64   `json:"score"`
	MaxScore   float64   `json:"max_score"`
	Percentage float64   `json:"percentage"`
	Passed     bool      `json:"passed"`
	TimedOut   bool      `json:"timed_out"`
	FinishedAt time.Time `json:"finished_at"`
}

type GroupsGeneratedData struct {
	GroupIDs     []uint  `json:"group_ids"`
	Strategy     string  `json:"strategy"`
	TestID       *uint   `json:"test_id,omitempty"`
	MemberCount  int     `json:"member_count"`
	BalanceScore float64 `json:"balance_score"`
	CreatedBy    string  `json:"created_by"`
}

type RecommendationReadyData struct {
	RecommendationID uint   `json:"recommendation_id"`
	ResultID         uint   `json:"result_id"`
	UserID           string `json:"user_id"`
	Model            string `json:"model"`
}
