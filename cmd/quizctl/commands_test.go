package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

type noDirectory struct{}

func (noDirectory) GetByID(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (noDirectory) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (noDirectory) GetByIDs(context.Context, []string) ([]*models.User, error) { return nil, nil }

func (noDirectory) List(context.Context, repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (noDirectory) Search(context.Context, string, repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (noDirectory) ExistsByID(context.Context, string) (bool, error) { return false, nil }

func (noDirectory) HasRole(context.Context, string, models.UserRole) (bool, error) {
	return false, nil
}

// useSQLite points every command at a fresh in-memory database.
func useSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), pkg.GormConfig(logger.Discard))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	orig := openBackend
	openBackend = func(log *slog.Logger) (*backend, error) {
		b := newBackend(db, nil, postgres.RepositoryConfig{DB: db, UserDirectory: noDirectory{}}, log)
		// the database outlives a single command
		b.close = func() {}
		return b, nil
	}
	t.Cleanup(func() {
		openBackend = orig
		_ = sqlDB.Close()
	})
	return db
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// seedRanking stores a published test with four finished attempts scoring 100, 75, 50 and 25.
func seedRanking(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	for i, name := range []string{"Sara", "Sven", "Sofia", "Sam"} {
		id := "s" + strconv.Itoa(i+1)
		require.NoError(t, db.Create(&models.Profile{ID: id, FullName: name, Email: id + "@example.com", Role: models.RoleStudent}).Error)
	}
	test := &models.Test{Title: "Math basics", Status: models.TestPublished, PassingScore: 50, CreatedBy: "t1", IsPublic: true}
	require.NoError(t, db.Create(test).Error)

	now := time.Now()
	for i, pct := range []float64{100, 75, 50, 25} {
		completed := now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&models.TestResult{
			TestID:      test.ID,
			UserID:      "s" + strconv.Itoa(i+1),
			Status:      models.ResultCompleted,
			Score:       pct / 25,
			MaxScore:    4,
			Percentage:  pct,
			Passed:      pct >= 50,
			StartedAt:   now,
			CompletedAt: &completed,
			TimeSpent:   60,
		}).Error)
	}
	return test.ID
}

func TestMigrateCommand(t *testing.T) {
	db := useSQLite(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")
	assert.True(t, db.Migrator().HasTable(&models.TestResult{}))
}

func TestLeaderboardCommand(t *testing.T) {
	db := useSQLite(t)
	require.NoError(t, pkg.Migrate(db))
	testID := seedRanking(t, db)
	id := strconv.FormatUint(uint64(testID), 10)

	t.Run("prints the ranking", func(t *testing.T) {
		out, err := execute(t, "leaderboard", "--test", id, "--limit", "2", "--out", "")
		require.NoError(t, err)
		assert.Contains(t, out, "Sara")
		assert.Contains(t, out, "Sven")
		assert.NotContains(t, out, "Sofia")
	})

	t.Run("exports a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ranking.xlsx")
		_, err := execute(t, "leaderboard", "--test", id, "--out", path)
		require.NoError(t, err)

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Math basics")
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, []string{"4", "Sam", "s4"}, rows[4][:3])
	})

	t.Run("unknown test", func(t *testing.T) {
		_, err := execute(t, "leaderboard", "--test", "999", "--out", "")
		assert.Error(t, err)
	})
}

func TestGroupsCommand(t *testing.T) {
	db := useSQLite(t)
	require.NoError(t, pkg.Migrate(db))
	testID := seedRanking(t, db)
	id := strconv.FormatUint(uint64(testID), 10)

	out, err := execute(t, "groups", "--test", id, "--strategy", "leaderboard", "--count", "2", "--size", "0", "--top", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy leaderboard")
	assert.Contains(t, out, "s1(100.00)")
	assert.Contains(t, out, "s4(25.00)")

	_, err = execute(t, "groups", "--strategy", "random", "--count", "2")
	assert.ErrorContains(t, err, "unknown strategy")

	_, err = execute(t, "groups", "--strategy", "snake", "--count", "0", "--size", "0")
	assert.Error(t, err)
}
