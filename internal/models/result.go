package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type ResultStatus string

const (
	ResultInProgress ResultStatus = "in_progress"
	ResultCompleted  ResultStatus = "completed"
	ResultTimedOut   ResultStatus = "timed_out"
)

func (s ResultStatus) IsFinished() bool {
	return s == ResultCompleted || s == ResultTimedOut
}

type TestResult struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	// idx_result_open allows one in-progress attempt per user and test
	TestID        uint         `json:"test_id" gorm:"not null;index:idx_result_test_user;uniqueIndex:idx_result_open,where:status = 'in_progress'"`
	UserID        string       `json:"user_id" gorm:"not null;size:255;index:idx_result_test_user;uniqueIndex:idx_result_open,where:status = 'in_progress'"`
	AttemptNumber int          `json:"attempt_number" gorm:"not null;default:1"`
	Status        ResultStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`

	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage" gorm:"index"`
	Passed     bool    `json:"passed"`
	ScaleLabel *string `json:"scale_label" gorm:"size:100"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Test    *Test        `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Answers []UserAnswer `json:"answers,omitempty" gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"`
}

func (TestResult) TableName() string {
	return "test_results"
}

type UserAnswer struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	ResultID          uint           `json:"result_id" gorm:"not null;uniqueIndex:idx_answer_result_question"`
	QuestionID        uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_result_question"`
	SelectedOptionIDs datatypes.JSON `json:"selected_option_ids"`
	TextAnswer        *string        `json:"text_answer" gorm:"type:text"`
	IsCorrect         bool           `json:"is_correct"`
	PointsEarned      float64        `json:"points_earned"`
	AnsweredAt        time.Time      `json:"answered_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}

// SelectedIDs decodes SelectedOptionIDs. Malformed data decodes to nil.
func (a *UserAnswer) SelectedIDs() []uint {
	if len(a.SelectedOptionIDs) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(a.SelectedOptionIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (a *UserAnswer) SetSelectedIDs(ids []uint) {
	if ids == nil {
		ids = []uint{}
	}
	data, _ := json.Marshal(ids)
	a.SelectedOptionIDs = datatypes.JSON(data)
}
