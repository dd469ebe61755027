package models

import "time"

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:100;uniqueIndex"`
	Description *string   `json:"description" gorm:"type:text"`
	Color       *string   `json:"color" gorm:"size:7"`
	CreatedBy   string    `json:"created_by" gorm:"not null;size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// AssessmentScale maps a percentage band to a label. A nil TestID makes the scale global.
type AssessmentScale struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	TestID        *uint     `json:"test_id" gorm:"index"`
	Name          string    `json:"name" gorm:"not null;size:100"`
	Label         string    `json:"label" gorm:"not null;size:100"`
	MinPercentage float64   `json:"min_percentage" gorm:"not null"`
	MaxPercentage float64   `json:"max_percentage" gorm:"not null"`
	Description   *string   `json:"description" gorm:"type:text"`
	Color         *string   `json:"color" gorm:"size:7"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AssessmentScale) TableName() string {
	return "assessment_scales"
}

func (s *AssessmentScale) Contains(percentage float64) bool {
	return percentage >= s.MinPercentage && percentage <= s.MaxPercentage
}
