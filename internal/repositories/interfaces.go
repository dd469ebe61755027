package repositories

import (
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	Status     *models.TestStatus `json:"status"`
	CreatedBy  *string            `json:"created_by"`
	CategoryID *uint              `json:"category_id"`
	// VisibleTo limits results to published tests plus the ones this user authored.
	VisibleTo *string `json:"-"`
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "title", "status"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

type ResultFilters struct {
	Status    *models.ResultStatus `json:"status"`
	TestID    *uint                `json:"test_id"`
	UserID    *string              `json:"user_id"`
	DateFrom  *time.Time           `json:"date_from"`
	DateTo    *time.Time           `json:"date_to"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`
	SortOrder string               `json:"sort_order"`
}

type ProfileFilters struct {
	Role   *models.UserRole `json:"role"`
	Query  string           `json:"query"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type GroupFilters struct {
	TestID    *uint   `json:"test_id"`
	CreatedBy *string `json:"created_by"`
	MemberID  *string `json:"member_id"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

// ===== AGGREGATE ROWS =====

// BestResult is a user's best finished attempt on one test.
type BestResult struct {
	ResultID    uint       `json:"result_id"`
	TestID      uint       `json:"test_id"`
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Score       float64    `json:"score"`
	MaxScore    float64    `json:"max_score"`
	Percentage  float64    `json:"percentage"`
	TimeSpent   int        `json:"time_spent"`
	CompletedAt *time.Time `json:"completed_at"`
}

// UserTestBest is the highest percentage a user reached on a test.
type UserTestBest struct {
	UserID         string  `json:"user_id"`
	TestID         uint    `json:"test_id"`
	BestPercentage float64 `json:"best_percentage"`
	BestScore      float64 `json:"best_score"`
}

// CompetencyRow sums answer points for one user in one category. Category 0 holds
// answers whose question and test are both uncategorised.
type CompetencyRow struct {
	UserID       string  `json:"user_id"`
	CategoryID   uint    `json:"category_id"`
	PointsEarned float64 `json:"points_earned"`
	PointsTotal  float64 `json:"points_total"`
}

type QuestionOrder struct {
	QuestionID uint `json:"question_id"`
	Order      int  `json:"order"`
}
