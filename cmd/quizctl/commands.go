package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-service/internal/grouping"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	b, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer b.close()

	if err := pkg.Migrate(b.db); err != nil {
		return err
	}
	logger.Info("Database schema is up to date")
	fmt.Fprintln(cmd.OutOrStdout(), "migrated")
	return nil
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	testID, _ := cmd.Flags().GetUint("test")
	limit, _ := cmd.Flags().GetInt("limit")
	out, _ := cmd.Flags().GetString("out")
	if testID == 0 {
		return fmt.Errorf("--test is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	b, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer b.close()

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := b.leaderboard.ExportLeaderboard(ctx, testID, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("Leaderboard exported", "test_id", testID, "file", out)
		return nil
	}

	board, err := b.leaderboard.TestLeaderboard(ctx, testID, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tUSER\tSCORE\tPERCENT\tTIME")
	for _, e := range board.Entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%g/%g\t%.2f\t%ds\n", e.Rank, e.FullName, e.UserID, e.Score, e.MaxScore, e.Percentage, e.TimeSpent)
	}
	return w.Flush()
}

func runGroups(cmd *cobra.Command, args []string) error {
	req, err := planRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	b, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer b.close()

	result, err := b.groups.Plan(ctx, req)
	if err != nil {
		return err
	}
	printPlan(cmd, result)
	return nil
}

func planRequestFromFlags(cmd *cobra.Command) (services.PlanRequest, error) {
	testID, _ := cmd.Flags().GetUint("test")
	categoryID, _ := cmd.Flags().GetUint("category")
	count, _ := cmd.Flags().GetInt("count")
	size, _ := cmd.Flags().GetInt("size")
	strategy, _ := cmd.Flags().GetString("strategy")
	top, _ := cmd.Flags().GetInt("top")
	rebalance, _ := cmd.Flags().GetBool("rebalance")

	req := services.PlanRequest{
		Strategy: grouping.Strategy(strings.ToLower(strings.TrimSpace(strategy))),
		TopN:     top,
		Options: grouping.Options{
			GroupCount: count,
			GroupSize:  size,
			Rebalance:  rebalance,
		},
	}
	switch req.Strategy {
	case grouping.Snake, grouping.Complement, grouping.Leaderboard:
	default:
		return req, fmt.Errorf("unknown strategy %q", strategy)
	}
	if count <= 0 && size <= 0 {
		return req, fmt.Errorf("either --count or --size must be positive")
	}
	if testID > 0 {
		req.TestID = &testID
	}
	if categoryID > 0 {
		req.CategoryID = &categoryID
	}
	if req.Strategy == grouping.Leaderboard && req.TestID == nil {
		return req, fmt.Errorf("the leaderboard strategy needs --test")
	}
	return req, nil
}

func printPlan(cmd *cobra.Command, result *models.GroupingResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "strategy %s, balance score %.2f\n", result.Strategy, result.BalanceScore)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tAVERAGE\tVARIANCE\tMEMBERS")
	for _, g := range result.Groups {
		members := lo.Map(g.Members, func(m models.GroupMember, _ int) string {
			return fmt.Sprintf("%s(%.2f)", m.UserID, m.Score)
		})
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\n", g.Name, g.AverageScore, g.Variance, strings.Join(members, " "))
	}
	w.Flush()
}
