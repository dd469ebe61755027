package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/ai"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Service-specific configurations
	Attempt        ServiceConfig
	Leaderboard    ServiceConfig
	Group          ServiceConfig
	Recommendation ServiceConfig

	// SubmissionGrace is added to test time limits before an attempt counts as late.
	SubmissionGrace time.Duration
	DefaultTimeout  time.Duration
}

type ServiceConfig struct {
	Enabled      bool
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Dependencies are the collaborators shared by every service.
type Dependencies struct {
	DB          *gorm.DB
	Repo        repositories.Repository
	Cache       *cache.CacheManager
	Publisher   events.EventPublisher
	Recommender ai.Recommender
	Logger      *slog.Logger
	Validator   *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	cache  *cache.CacheManager
	config ServiceManagerConfig

	testService           TestService
	questionService       QuestionService
	categoryService       CategoryService
	scaleService          ScaleService
	attemptService        AttemptService
	leaderboardService    LeaderboardService
	competencyService     CompetencyService
	groupService          GroupService
	recommendationService RecommendationService
	profileService        ProfileService
	dashboardService      DashboardService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &serviceManager{
		deps:   deps,
		config: config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(deps Dependencies) ServiceManager {
	return NewServiceManager(deps, ServiceManagerConfig{
		LogLevel:        slog.LevelInfo,
		Attempt:         ServiceConfig{Enabled: true},
		Leaderboard:     ServiceConfig{Enabled: true, CacheEnabled: true, CacheTTL: cache.LeaderboardCacheConfig.TTL},
		Group:           ServiceConfig{Enabled: true},
		Recommendation:  ServiceConfig{Enabled: true},
		SubmissionGrace: DefaultSubmissionGrace,
		DefaultTimeout:  30 * time.Second,
	})
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Initializing service manager")

	if err := sm.config.Validate(); err != nil {
		return err
	}
	if sm.deps.Repo == nil {
		return fmt.Errorf("failed to initialize services: repository is required")
	}

	sm.initializeServices()

	if err := sm.validateServicesHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() {
	d := sm.deps

	sm.cache = d.Cache
	if sm.cache == nil {
		if provider, ok := d.Repo.(interface{ CacheManager() *cache.CacheManager }); ok {
			sm.cache = provider.CacheManager()
		} else {
			sm.cache = cache.NewCacheManager(nil)
		}
	}
	if !sm.config.Leaderboard.CacheEnabled {
		// a nil client turns the helpers into pass-throughs
		disabled := cache.NewCacheManager(nil)
		sm.cache = &cache.CacheManager{
			Test:           sm.cache.Test,
			Leaderboard:    disabled.Leaderboard,
			Competency:     sm.cache.Competency,
			Profile:        sm.cache.Profile,
			Stats:          sm.cache.Stats,
			LeaderboardTTL: sm.cache.LeaderboardTTL,
		}
	} else if sm.config.Leaderboard.CacheTTL > 0 {
		sm.cache.LeaderboardTTL = sm.config.Leaderboard.CacheTTL
	}

	grace := sm.config.SubmissionGrace
	if grace <= 0 {
		grace = DefaultSubmissionGrace
	}

	sm.categoryService = NewCategoryService(d.Repo, d.Logger, d.Validator)
	sm.scaleService = NewScaleService(d.Repo, d.Logger, d.Validator)
	sm.testService = NewTestService(d.Repo, d.DB, sm.cache, d.Logger, d.Validator)
	sm.questionService = NewQuestionService(d.Repo, d.DB, d.Logger, d.Validator)
	sm.profileService = NewProfileService(d.Repo, d.Logger)
	sm.competencyService = NewCompetencyService(d.Repo, sm.cache, d.Logger)
	sm.dashboardService = NewDashboardService(d.Repo, sm.cache, d.Logger)
	sm.deps.Logger.Info("Authoring services initialized")

	if sm.config.Attempt.Enabled {
		sm.attemptService = NewAttemptService(d.Repo, sm.cache, d.Publisher, d.Logger, d.Validator, grace)
		sm.deps.Logger.Info("Attempt service initialized", "submission_grace", grace)
	}

	if sm.config.Leaderboard.Enabled {
		sm.leaderboardService = NewLeaderboardService(d.Repo, sm.cache, d.Logger)
		sm.deps.Logger.Info("Leaderboard service initialized", "cache_enabled", sm.config.Leaderboard.CacheEnabled)
	}

	if sm.config.Group.Enabled {
		sm.groupService = NewGroupService(d.Repo, sm.competencyService, d.Publisher, d.Logger, d.Validator)
		sm.deps.Logger.Info("Group service initialized")
	}

	if sm.config.Recommendation.Enabled {
		sm.recommendationService = NewRecommendationService(d.Repo, d.Recommender, sm.competencyService, d.Publisher, d.Logger)
		sm.deps.Logger.Info("Recommendation service initialized", "model", sm.recommendationModel())
	}
}

func (sm *serviceManager) recommendationModel() string {
	if sm.deps.Recommender == nil {
		return ""
	}
	return sm.deps.Recommender.Model()
}

func (sm *serviceManager) validateServicesHealth(ctx context.Context) error {
	if sm.deps.DB == nil {
		return nil
	}
	return sm.deps.Repo.Ping(ctx)
}

// Service getters

func (sm *serviceManager) Test() TestService {
	return getService(sm, sm.testService, "test")
}

func (sm *serviceManager) Question() QuestionService {
	return getService(sm, sm.questionService, "question")
}

func (sm *serviceManager) Category() CategoryService {
	return getService(sm, sm.categoryService, "category")
}

func (sm *serviceManager) Scale() ScaleService {
	return getService(sm, sm.scaleService, "scale")
}

func (sm *serviceManager) Attempt() AttemptService {
	return getService(sm, sm.attemptService, "attempt")
}

func (sm *serviceManager) Leaderboard() LeaderboardService {
	return getService(sm, sm.leaderboardService, "leaderboard")
}

func (sm *serviceManager) Competency() CompetencyService {
	return getService(sm, sm.competencyService, "competency")
}

func (sm *serviceManager) Group() GroupService {
	return getService(sm, sm.groupService, "group")
}

func (sm *serviceManager) Recommendation() RecommendationService {
	return getService(sm, sm.recommendationService, "recommendation")
}

func (sm *serviceManager) Profile() ProfileService {
	return getService(sm, sm.profileService, "profile")
}

func (sm *serviceManager) Dashboard() DashboardService {
	return getService(sm, sm.dashboardService, "dashboard")
}

// getService panics when the manager is not initialized or the service is disabled.
func getService[T comparable](sm *serviceManager, svc T, name string) T {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	var zero T
	if svc == zero {
		panic(name + " service not enabled or not initialized")
	}
	return svc
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.deps.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if repoManager, ok := sm.deps.Repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.deps.Logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

// GetConfig returns the service manager configuration
func (sm *serviceManager) GetConfig() ServiceManagerConfig {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.config
}

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== CONFIGURATION VALIDATION =====

// Validate validates the service manager configuration
func (config *ServiceManagerConfig) Validate() error {
	var errors []string

	if config.DefaultTimeout < 0 {
		errors = append(errors, "default timeout cannot be negative")
	}
	if config.SubmissionGrace < 0 {
		errors = append(errors, "submission grace cannot be negative")
	}

	for name, sc := range map[string]ServiceConfig{
		"attempt":        config.Attempt,
		"leaderboard":    config.Leaderboard,
		"group":          config.Group,
		"recommendation": config.Recommendation,
	} {
		if sc.CacheTTL < 0 {
			errors = append(errors, fmt.Sprintf("%s: cache TTL cannot be negative", name))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// ===== FACTORY FUNCTIONS =====

// CreateProductionServiceManager creates a service manager configured for production
func CreateProductionServiceManager(deps Dependencies, leaderboardTTL, submissionGrace time.Duration) ServiceManager {
	return NewServiceManager(deps, ServiceManagerConfig{
		LogLevel:        slog.LevelInfo,
		Attempt:         ServiceConfig{Enabled: true},
		Leaderboard:     ServiceConfig{Enabled: true, CacheEnabled: true, CacheTTL: leaderboardTTL},
		Group:           ServiceConfig{Enabled: true},
		Recommendation:  ServiceConfig{Enabled: true},
		SubmissionGrace: submissionGrace,
		DefaultTimeout:  60 * time.Second,
	})
}

// CreateDevelopmentServiceManager creates a service manager configured for development
func CreateDevelopmentServiceManager(deps Dependencies, submissionGrace time.Duration) ServiceManager {
	return NewServiceManager(deps, ServiceManagerConfig{
		EnableDebugLogging: true,
		LogLevel:           slog.LevelDebug,
		Attempt:            ServiceConfig{Enabled: true},
		Leaderboard:        ServiceConfig{Enabled: true},
		Group:              ServiceConfig{Enabled: true},
		Recommendation:     ServiceConfig{Enabled: true},
		SubmissionGrace:    submissionGrace,
		DefaultTimeout:     10 * time.Second,
	})
}
