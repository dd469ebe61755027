package models

import "time"

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TextAnswer     QuestionType = "text"
)

func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultipleChoice || t == TextAnswer
}

type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	TestID      uint         `json:"test_id" gorm:"not null;index"`
	Text        string       `json:"text" gorm:"not null;type:text"`
	Type        QuestionType `json:"type" gorm:"not null;size:20"`
	Points      int          `json:"points" gorm:"not null;default:1"`
	Order       int          `json:"order" gorm:"column:order;not null;default:0"`
	Explanation *string      `json:"explanation" gorm:"type:text"`
	CategoryID  *uint        `json:"category_id" gorm:"index"`
	FuzzyMatch  bool         `json:"fuzzy_match" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []AnswerOption `json:"options" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// AnswerOption is a choice for choice questions, or an accepted answer for text questions.
type AnswerOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null;type:text"`
	IsCorrect  bool   `json:"is_correct" gorm:"not null;default:false"`
	Order      int    `json:"order" gorm:"column:order;not null;default:0"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}
