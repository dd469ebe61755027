package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grouping"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

type TestResponse struct {
	*models.Test
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanTake   bool `json:"can_take"`
}

type TestListResponse struct {
	Tests []*TestResponse `json:"tests"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// ===== ATTEMPT RELATED DTOs =====

type AttemptResponse struct {
	Result   *models.TestResult `json:"result"`
	Test     *models.Test       `json:"test"`
	Deadline *time.Time         `json:"deadline,omitempty"`
	Resumed  bool               `json:"resumed"`
}

// QuestionReview is one graded question as shown after submission. CorrectOptionIDs
// and Explanation are only filled when correct answers may be revealed.
type QuestionReview struct {
	QuestionID        uint                  `json:"question_id"`
	Text              string                `json:"text"`
	Type              models.QuestionType   `json:"type"`
	Points            int                   `json:"points"`
	Options           []models.AnswerOption `json:"options,omitempty"`
	SelectedOptionIDs []uint                `json:"selected_option_ids"`
	TextAnswer        *string               `json:"text_answer,omitempty"`
	IsCorrect         bool                  `json:"is_correct"`
	PointsEarned      float64               `json:"points_earned"`
	CorrectOptionIDs  []uint                `json:"correct_option_ids,omitempty"`
	AcceptedAnswers   []string              `json:"accepted_answers,omitempty"`
	Explanation       *string               `json:"explanation,omitempty"`
}

type ResultResponse struct {
	Result            *models.TestResult `json:"result"`
	TestTitle         string             `json:"test_title"`
	Questions         []QuestionReview   `json:"questions,omitempty"`
	CorrectRevealed   bool               `json:"correct_revealed"`
	RemainingAttempts *int               `json:"remaining_attempts,omitempty"`
}

type ResultListResponse struct {
	Results []*models.TestResult `json:"results"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
}

// ===== PEOPLE & GROUP DTOs =====

type ProfileListResponse struct {
	Profiles []*models.Profile `json:"profiles"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

type DirectoryResponse struct {
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
}

type GroupListResponse struct {
	Groups []*models.Group `json:"groups"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

// PlanRequest describes a grouping preview. Exactly one candidate source applies:
// explicit UserIDs, otherwise everyone with finished results (optionally scoped).
type PlanRequest struct {
	Strategy   grouping.Strategy
	TestID     *uint
	CategoryID *uint
	UserIDs    []string
	TopN       int
	Options    grouping.Options
}

type DashboardResponse struct {
	Overview              repositories.OverviewData               `json:"overview"`
	CompletionRate        float64                                 `json:"completion_rate"`
	PassRate              float64                                 `json:"pass_rate"`
	QuestionDistribution  []repositories.QuestionDistributionData `json:"question_distribution"`
	PerformanceByCategory []repositories.CategoryPerformanceData  `json:"performance_by_category"`
	GeneratedAt           time.Time                               `json:"generated_at"`
}

// ===== SERVICE INTERFACES =====

type TestService interface {
	Create(ctx context.Context, req *models.TestCreateRequest, userID string) (*TestResponse, error)
	Get(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Update(ctx context.Context, id uint, req *models.TestUpdateRequest, userID string) (*TestResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error)

	Publish(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Unpublish(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Archive(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Duplicate(ctx context.Context, id uint, userID string) (*TestResponse, error)
}

type QuestionService interface {
	Add(ctx context.Context, testID uint, req *models.QuestionCreateRequest, userID string) (*models.Question, error)
	Update(ctx context.Context, id uint, req *models.QuestionUpdateRequest, userID string) (*models.Question, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, testID uint, userID string) ([]*models.Question, error)
	Reorder(ctx context.Context, testID uint, req *models.ReorderQuestionsRequest, userID string) error
	ImportFromSpreadsheet(ctx context.Context, testID uint, r io.Reader, userID string) (*models.ImportResult, error)
}

type CategoryService interface {
	Create(ctx context.Context, req *models.CategoryRequest, userID string) (*models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	Update(ctx context.Context, id uint, req *models.CategoryRequest, userID string) (*models.Category, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context) ([]*models.Category, error)
}

type ScaleService interface {
	Create(ctx context.Context, req *models.ScaleRequest, userID string) (*models.AssessmentScale, error)
	Get(ctx context.Context, id uint) (*models.AssessmentScale, error)
	Update(ctx context.Context, id uint, req *models.ScaleRequest, userID string) (*models.AssessmentScale, error)
	Delete(ctx context.Context, id uint, userID string) error
	// List returns global scales when testID is nil.
	List(ctx context.Context, testID *uint) ([]models.AssessmentScale, error)
}

type AttemptService interface {
	Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, resultID uint, answer *models.AnswerSubmission, userID string) error
	Submit(ctx context.Context, resultID uint, req *models.SubmitResultRequest, userID string) (*ResultResponse, error)
	Get(ctx context.Context, resultID uint, userID string) (*ResultResponse, error)
	ListMine(ctx context.Context, userID string, filters repositories.ResultFilters) (*ResultListResponse, error)
	ListByTest(ctx context.Context, testID uint, userID string, filters repositories.ResultFilters) (*ResultListResponse, error)
}

type LeaderboardService interface {
	TestLeaderboard(ctx context.Context, testID uint, limit int) (*models.Leaderboard, error)
	GlobalLeaderboard(ctx context.Context, categoryID *uint, limit int) (*models.Leaderboard, error)
	UserRank(ctx context.Context, testID uint, userID string) (*models.LeaderboardEntry, error)
	ExportLeaderboard(ctx context.Context, testID uint, w io.Writer) error
}

type CompetencyService interface {
	Competencies(ctx context.Context, userIDs []string, categoryID *uint) ([]models.UserCompetency, error)
	ForUser(ctx context.Context, userID string, categoryID *uint) (*models.UserCompetency, error)
	// View is ForUser with an access check: students only see themselves.
	View(ctx context.Context, targetID string, categoryID *uint, viewerID string) (*models.UserCompetency, error)
}

type GroupService interface {
	GenerateSmart(ctx context.Context, req *models.SmartGroupRequest, userID string) (*models.GroupingResult, error)
	GenerateFromLeaderboard(ctx context.Context, req *models.LeaderboardGroupRequest, userID string) (*models.GroupingResult, error)
	// Plan builds a preview without access checks or persistence.
	Plan(ctx context.Context, req PlanRequest) (*models.GroupingResult, error)

	Get(ctx context.Context, id uint, userID string) (*models.Group, error)
	List(ctx context.Context, filters repositories.GroupFilters, userID string) (*GroupListResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	AddMember(ctx context.Context, groupID uint, req *models.AddGroupMemberRequest, userID string) (*models.Group, error)
	RemoveMember(ctx context.Context, groupID uint, memberID string, userID string) (*models.Group, error)
	ExportGroups(ctx context.Context, filters repositories.GroupFilters, userID string, w io.Writer) error
}

type RecommendationService interface {
	Generate(ctx context.Context, resultID uint, userID string, force bool) (*models.AIRecommendation, error)
	Get(ctx context.Context, resultID uint, userID string) (*models.AIRecommendation, error)
	ListMine(ctx context.Context, userID string) ([]*models.AIRecommendation, error)
	HandleResultCompleted(ctx context.Context, event *events.Event) error
}

type ProfileService interface {
	Sync(ctx context.Context, user *models.User) (*models.Profile, error)
	Me(ctx context.Context, userID string) (*models.Profile, error)
	Get(ctx context.Context, id string, viewerID string) (*models.Profile, error)
	List(ctx context.Context, filters repositories.ProfileFilters, viewerID string) (*ProfileListResponse, error)
	SearchDirectory(ctx context.Context, query string, filters repositories.UserFilters, viewerID string) (*DirectoryResponse, error)
}

type DashboardService interface {
	Overview(ctx context.Context, userID string) (*DashboardResponse, error)
}

// ServiceManager owns every service and their shared lifecycle.
type ServiceManager interface {
	Initialize(ctx context.Context) error

	Test() TestService
	Question() QuestionService
	Category() CategoryService
	Scale() ScaleService
	Attempt() AttemptService
	Leaderboard() LeaderboardService
	Competency() CompetencyService
	Group() GroupService
	Recommendation() RecommendationService
	Profile() ProfileService
	Dashboard() DashboardService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
