// Command quizctl runs maintenance tasks against the quiz database without
// starting the HTTP server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quizctl",
	Short: "Maintenance commands for the quiz service",
	Long: `quizctl shares configuration with the quiz service (.env and environment
variables) and talks to the same Postgres database and Redis cache.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print or export the ranking of a test",
	Long: `Prints the ranked best attempts of a test. With --out the full ranking is
written as an xlsx workbook instead.

Example:
  quizctl leaderboard --test 12 --limit 20
  quizctl leaderboard --test 12 --out ranking.xlsx`,
	RunE: runLeaderboard,
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Preview balanced groups without saving them",
	Long: `Builds a grouping plan from finished results and prints it.

Strategies:
  - snake:       serpentine draft by score
  - complement:  pairs strong and weak category profiles
  - leaderboard: snake over the top ranked users of a test`,
	RunE: runGroups,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	leaderboardCmd.Flags().Uint("test", 0, "Test ID (required)")
	leaderboardCmd.Flags().Int("limit", 10, "Number of entries to print")
	leaderboardCmd.Flags().String("out", "", "Write the full ranking to this xlsx file")
	leaderboardCmd.MarkFlagRequired("test")

	groupsCmd.Flags().Uint("test", 0, "Score members by their best result on this test")
	groupsCmd.Flags().Uint("category", 0, "Restrict competency scores to this category")
	groupsCmd.Flags().Int("count", 0, "Number of groups")
	groupsCmd.Flags().Int("size", 0, "Target group size, used when --count is not set")
	groupsCmd.Flags().String("strategy", "snake", "Grouping strategy: snake, complement or leaderboard")
	groupsCmd.Flags().Int("top", 0, "Leaderboard strategy: only group the top N users")
	groupsCmd.Flags().Bool("rebalance", true, "Swap members between groups to even out averages")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(groupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
