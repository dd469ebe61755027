package repositories

import "context"

// Repository aggregates every repository the service layer needs.
type Repository interface {
	// Authoring
	Test() TestRepository
	Question() QuestionRepository
	Category() CategoryRepository
	Scale() ScaleRepository

	// Taking
	Result() ResultRepository

	// People
	Profile() ProfileRepository
	User() UserRepository // read-only identity directory
	Group() GroupRepository

	Recommendation() RecommendationRepository
	Dashboard() DashboardRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
