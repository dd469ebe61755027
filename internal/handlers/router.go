package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

const healthCheckTimeout = 3 * time.Second

type HandlerManager struct {
	serviceManager services.ServiceManager

	testHandler           *TestHandler
	questionHandler       *QuestionHandler
	categoryHandler       *CategoryHandler
	attemptHandler        *AttemptHandler
	leaderboardHandler    *LeaderboardHandler
	groupHandler          *GroupHandler
	recommendationHandler *RecommendationHandler
	userHandler           *UserHandler
	dashboardHandler      *DashboardHandler
	authMiddleware        *CasdoorAuthMiddleware
}

func NewHandlerManager(serviceManager services.ServiceManager, authMiddleware *CasdoorAuthMiddleware, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		serviceManager:        serviceManager,
		testHandler:           NewTestHandler(serviceManager.Test(), logger),
		questionHandler:       NewQuestionHandler(serviceManager.Question(), logger),
		categoryHandler:       NewCategoryHandler(serviceManager.Category(), serviceManager.Scale(), logger),
		attemptHandler:        NewAttemptHandler(serviceManager.Attempt(), logger),
		leaderboardHandler:    NewLeaderboardHandler(serviceManager.Leaderboard(), serviceManager.Competency(), logger),
		groupHandler:          NewGroupHandler(serviceManager.Group(), logger),
		recommendationHandler: NewRecommendationHandler(serviceManager.Recommendation(), logger),
		userHandler:           NewUserHandler(serviceManager.Profile(), logger),
		dashboardHandler:      NewDashboardHandler(serviceManager.Dashboard(), logger),
		authMiddleware:        authMiddleware,
	}
}

// SetupRoutes registers /health and every /api/v1 route.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.Health)

	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		tests := v1.Group("/tests")
		{
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.POST("", staff, hm.testHandler.CreateTest)
			tests.PUT("/:id", staff, hm.testHandler.UpdateTest)
			tests.DELETE("/:id", staff, hm.testHandler.DeleteTest)
			tests.POST("/:id/publish", staff, hm.testHandler.PublishTest)
			tests.POST("/:id/unpublish", staff, hm.testHandler.UnpublishTest)
			tests.POST("/:id/archive", staff, hm.testHandler.ArchiveTest)
			tests.POST("/:id/duplicate", staff, hm.testHandler.DuplicateTest)

			tests.GET("/:id/questions", hm.questionHandler.ListQuestions)
			tests.POST("/:id/questions", staff, hm.questionHandler.AddQuestion)
			tests.PUT("/:id/questions/reorder", staff, hm.questionHandler.ReorderQuestions)
			tests.POST("/:id/questions/import", staff, hm.questionHandler.ImportQuestions)

			tests.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
			tests.GET("/:id/results", staff, hm.attemptHandler.ListTestResults)
		}

		questions := v1.Group("/questions", staff)
		{
			questions.PUT("/:question_id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:question_id", hm.questionHandler.DeleteQuestion)
		}

		results := v1.Group("/results")
		{
			results.GET("/me", hm.attemptHandler.ListMyResults)
			results.GET("/:result_id", hm.attemptHandler.GetResult)
			results.PUT("/:result_id/answers", hm.attemptHandler.SaveAnswer)
			results.POST("/:result_id/submit", hm.attemptHandler.SubmitAttempt)
			results.GET("/:result_id/recommendation", hm.recommendationHandler.GetRecommendation)
			results.POST("/:result_id/recommendation", hm.recommendationHandler.GenerateRecommendation)
		}

		v1.GET("/recommendations/me", hm.recommendationHandler.ListMyRecommendations)

		categories := v1.Group("/categories")
		{
			categories.GET("", hm.categoryHandler.ListCategories)
			categories.GET("/:id", hm.categoryHandler.GetCategory)
			categories.POST("", staff, hm.categoryHandler.CreateCategory)
			categories.PUT("/:id", staff, hm.categoryHandler.UpdateCategory)
			categories.DELETE("/:id", staff, hm.categoryHandler.DeleteCategory)
		}

		scales := v1.Group("/scales")
		{
			scales.GET("", hm.categoryHandler.ListScales)
			scales.GET("/:id", hm.categoryHandler.GetScale)
			scales.POST("", staff, hm.categoryHandler.CreateScale)
			scales.PUT("/:id", staff, hm.categoryHandler.UpdateScale)
			scales.DELETE("/:id", staff, hm.categoryHandler.DeleteScale)
		}

		leaderboards := v1.Group("/leaderboards")
		{
			leaderboards.GET("/global", hm.leaderboardHandler.GlobalLeaderboard)
			leaderboards.GET("/tests/:id", hm.leaderboardHandler.TestLeaderboard)
			leaderboards.GET("/tests/:id/me", hm.leaderboardHandler.MyRank)
			leaderboards.GET("/tests/:id/export", staff, hm.leaderboardHandler.ExportLeaderboard)
		}

		v1.GET("/competencies", hm.leaderboardHandler.UserCompetency)

		groups := v1.Group("/groups")
		{
			groups.GET("", hm.groupHandler.ListGroups)
			groups.GET("/export", staff, hm.groupHandler.ExportGroups)
			groups.GET("/:id", hm.groupHandler.GetGroup)
			groups.POST("/smart", staff, hm.groupHandler.GenerateSmartGroups)
			groups.POST("/leaderboard", staff, hm.groupHandler.GenerateLeaderboardGroups)
			groups.DELETE("/:id", staff, hm.groupHandler.DeleteGroup)
			groups.POST("/:id/members", staff, hm.groupHandler.AddMember)
			groups.DELETE("/:id/members/:user_id", staff, hm.groupHandler.RemoveMember)
		}

		profiles := v1.Group("/profiles")
		{
			profiles.GET("/me", hm.userHandler.Me)
			profiles.GET("", staff, hm.userHandler.ListUsers)
			profiles.GET("/:user_id", hm.userHandler.GetUser)
		}
		v1.GET("/users/search", staff, hm.userHandler.SearchDirectory)

		v1.GET("/dashboard", staff, hm.dashboardHandler.GetOverview)
	}
}

// Health reports whether the database is reachable.
func (hm *HandlerManager) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "quiz-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
