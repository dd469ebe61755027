package models

import "time"

// ===== TESTS =====

type TestCreateRequest struct {
	Title              string                  `json:"title" validate:"required,min=1,max=200"`
	Description        *string                 `json:"description" validate:"omitempty,max=2000"`
	CategoryID         *uint                   `json:"category_id"`
	TimeLimit          int                     `json:"time_limit" validate:"min=0,max=600"`
	PassingScore       float64                 `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts        int                     `json:"max_attempts" validate:"min=0,max=100"`
	ShuffleQuestions   bool                    `json:"shuffle_questions"`
	ShowCorrectAnswers *bool                   `json:"show_correct_answers"`
	IsPublic           *bool                   `json:"is_public"`
	Questions          []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

type TestUpdateRequest struct {
	Title              *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description        *string  `json:"description" validate:"omitempty,max=2000"`
	CategoryID         *uint    `json:"category_id"`
	TimeLimit          *int     `json:"time_limit" validate:"omitempty,min=0,max=600"`
	PassingScore       *float64 `json:"passing_score" validate:"omitempty,min=0,max=100"`
	MaxAttempts        *int     `json:"max_attempts" validate:"omitempty,min=0,max=100"`
	ShuffleQuestions   *bool    `json:"shuffle_questions"`
	ShowCorrectAnswers *bool    `json:"show_correct_answers"`
	IsPublic           *bool    `json:"is_public"`
}

// ===== QUESTIONS =====

type AnswerOptionRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionCreateRequest struct {
	Text        string                `json:"text" validate:"required,min=1,max=5000"`
	Type        QuestionType          `json:"type" validate:"required,question_type"`
	Points      int                   `json:"points" validate:"omitempty,min=1,max=100"`
	Explanation *string               `json:"explanation" validate:"omitempty,max=5000"`
	CategoryID  *uint                 `json:"category_id"`
	FuzzyMatch  bool                  `json:"fuzzy_match"`
	Options     []AnswerOptionRequest `json:"options" validate:"required,min=1,max=20,dive"`
}

type QuestionUpdateRequest struct {
	Text        *string               `json:"text" validate:"omitempty,min=1,max=5000"`
	Type        *QuestionType         `json:"type" validate:"omitempty,question_type"`
	Points      *int                  `json:"points" validate:"omitempty,min=1,max=100"`
	Explanation *string               `json:"explanation" validate:"omitempty,max=5000"`
	CategoryID  *uint                 `json:"category_id"`
	FuzzyMatch  *bool                 `json:"fuzzy_match"`
	Options     []AnswerOptionRequest `json:"options" validate:"omitempty,min=1,max=20,dive"`
}

type ReorderQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1,unique"`
}

// ===== CATEGORIES & SCALES =====

type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

type ScaleRequest struct {
	TestID        *uint   `json:"test_id"`
	Name          string  `json:"name" validate:"required,min=1,max=100"`
	Label         string  `json:"label" validate:"required,min=1,max=100"`
	MinPercentage float64 `json:"min_percentage" validate:"min=0,max=100"`
	MaxPercentage float64 `json:"max_percentage" validate:"min=0,max=100,gtefield=MinPercentage"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Color         *string `json:"color" validate:"omitempty,hexcolor"`
}

// ===== TAKING =====

type AnswerSubmission struct {
	QuestionID        uint    `json:"question_id" validate:"required"`
	SelectedOptionIDs []uint  `json:"selected_option_ids"`
	TextAnswer        *string `json:"text_answer" validate:"omitempty,max=5000"`
}

type SubmitResultRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"omitempty,dive"`
}

// ===== GROUPS =====

type SmartGroupRequest struct {
	Name       string        `json:"name" validate:"omitempty,max=80"`
	TestID     *uint         `json:"test_id"`
	CategoryID *uint         `json:"category_id"`
	UserIDs    []string      `json:"user_ids" validate:"omitempty,unique"`
	GroupCount int           `json:"group_count" validate:"omitempty,min=1,max=500"`
	GroupSize  int           `json:"group_size" validate:"omitempty,min=1,max=500"`
	Strategy   GroupStrategy `json:"strategy" validate:"omitempty,oneof=snake complement"`
	Rebalance  bool          `json:"rebalance"`
	Persist    bool          `json:"persist"`
}

type LeaderboardGroupRequest struct {
	Name       string `json:"name" validate:"omitempty,max=80"`
	TestID     uint   `json:"test_id" validate:"required"`
	TopN       int    `json:"top_n" validate:"omitempty,min=1"`
	GroupCount int    `json:"group_count" validate:"omitempty,min=1,max=500"`
	GroupSize  int    `json:"group_size" validate:"omitempty,min=1,max=500"`
	Rebalance  bool   `json:"rebalance"`
	Persist    bool   `json:"persist"`
}

type AddGroupMemberRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	IsLeader bool   `json:"is_leader"`
}

// ===== RESPONSES =====

type LeaderboardEntry struct {
	Rank           int        `json:"rank"`
	UserID         string     `json:"user_id"`
	FullName       string     `json:"full_name"`
	ResultID       uint       `json:"result_id,omitempty"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"max_score"`
	Percentage     float64    `json:"percentage"`
	TimeSpent      int        `json:"time_spent"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TestsCompleted int        `json:"tests_completed,omitempty"`
}

type Leaderboard struct {
	TestID     *uint              `json:"test_id,omitempty"`
	CategoryID *uint              `json:"category_id,omitempty"`
	Entries    []LeaderboardEntry `json:"entries"`
	Total      int                `json:"total"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type CompetencyScore struct {
	CategoryID   uint    `json:"category_id"`
	CategoryName string  `json:"category_name"`
	PointsEarned float64 `json:"points_earned"`
	PointsTotal  float64 `json:"points_total"`
	Percentage   float64 `json:"percentage"`
}

type UserCompetency struct {
	UserID       string            `json:"user_id"`
	FullName     string            `json:"full_name"`
	Overall      float64           `json:"overall"`
	Competencies []CompetencyScore `json:"competencies"`
}

type GroupPreview struct {
	Name         string        `json:"name"`
	AverageScore float64       `json:"average_score"`
	Variance     float64       `json:"variance"`
	Members      []GroupMember `json:"members"`
}

type GroupingResult struct {
	Strategy     GroupStrategy  `json:"strategy"`
	BalanceScore float64        `json:"balance_score"`
	Persisted    bool           `json:"persisted"`
	Groups       []GroupPreview `json:"groups"`
	GroupIDs     []uint         `json:"group_ids,omitempty"`
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int              `json:"created"`
	Errors  []ImportRowError `json:"errors"`
}
