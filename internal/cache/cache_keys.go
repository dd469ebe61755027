package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates pattern and logs instead of failing.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", helper.GetCacheKey(pattern))
	}
}

func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// Key builders. Keep these in one place so writers and invalidators agree.

func TestKey(testID uint) string { return fmt.Sprintf("id:%d", testID) }

func TestDetailsKey(testID uint) string { return fmt.Sprintf("details:%d", testID) }

func TestLeaderboardKey(testID uint, limit int) string {
	return fmt.Sprintf("test:%d:limit:%d", testID, limit)
}

func GlobalLeaderboardKey(categoryID *uint, limit int) string {
	if categoryID == nil {
		return fmt.Sprintf("global:all:limit:%d", limit)
	}
	return fmt.Sprintf("global:cat:%d:limit:%d", *categoryID, limit)
}

func CompetencyKey(userID string, categoryID *uint) string {
	if categoryID == nil {
		return fmt.Sprintf("user:%s:all", userID)
	}
	return fmt.Sprintf("user:%s:cat:%d", userID, *categoryID)
}

// InvalidateTest drops cached test bodies after authoring changes.
func (cm *CacheManager) InvalidateTest(ctx context.Context, testID uint) {
	SafeDelete(ctx, cm.Test, TestKey(testID), TestDetailsKey(testID))
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}

// InvalidateLeaderboards drops the per-test board and every global board.
func (cm *CacheManager) InvalidateLeaderboards(ctx context.Context, testID uint) {
	SafeInvalidatePattern(ctx, cm.Leaderboard, fmt.Sprintf("test:%d:*", testID))
	SafeInvalidatePattern(ctx, cm.Leaderboard, "global:*")
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}

func (cm *CacheManager) InvalidateCompetency(ctx context.Context, userID string) {
	SafeInvalidatePattern(ctx, cm.Competency, fmt.Sprintf("user:%s:*", userID))
}
