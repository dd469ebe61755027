package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestPublished TestStatus = "published"
	TestArchived  TestStatus = "archived"
)

type Test struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	Title              string     `json:"title" gorm:"not null;size:200;index"`
	Description        *string    `json:"description" gorm:"type:text"`
	CategoryID         *uint      `json:"category_id" gorm:"index"`
	Status             TestStatus `json:"status" gorm:"not null;size:20;default:draft;index"`
	TimeLimit          int        `json:"time_limit" gorm:"not null;default:0"` // minutes, 0 = unlimited
	PassingScore       float64    `json:"passing_score" gorm:"not null"`
	MaxAttempts        int        `json:"max_attempts" gorm:"not null;default:0"` // 0 = unlimited
	ShuffleQuestions   bool       `json:"shuffle_questions" gorm:"not null;default:false"`
	ShowCorrectAnswers bool       `json:"show_correct_answers" gorm:"not null"`
	IsPublic           bool       `json:"is_public" gorm:"not null"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Category  *Category         `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Questions []Question        `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	Scales    []AssessmentScale `json:"scales,omitempty" gorm:"foreignKey:TestID"`

	QuestionCount int `json:"question_count" gorm:"-"`
	TotalPoints   int `json:"total_points" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) IsOwnedBy(userID string) bool {
	return t.CreatedBy == userID
}

// Deadline is the latest accepted submission time for an attempt started at startedAt.
// A zero time means there is no limit.
func (t *Test) Deadline(startedAt time.Time, grace time.Duration) time.Time {
	if t.TimeLimit <= 0 {
		return time.Time{}
	}
	return startedAt.Add(time.Duration(t.TimeLimit)*time.Minute + grace)
}
