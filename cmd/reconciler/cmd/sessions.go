package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fiscal-reconciliation-service/internal/session"
	"fiscal-reconciliation-service/pkg/logger"
)

// sessionsCmd groups session management subcommands
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage reconciliation sessions",
	Long: `List, inspect and delete stored reconciliation sessions.

Sessions only persist when a database path is given with --db; in-memory
sessions disappear when the process exits.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore(databasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.ListSessions(context.Background())
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions stored.")
			return nil
		}

		fmt.Printf("%-38s %-24s %-20s %-12s %-12s\n", "ID", "Name", "Company", "Start", "End")
		for _, s := range sessions {
			fmt.Printf("%-38s %-24s %-20s %-12s %-12s\n",
				s.ID, s.Name, s.Company,
				s.PeriodStart.Format("2006-01-02"),
				s.PeriodEnd.Format("2006-01-02"))
		}
		return nil
	},
}

var sessionsSummaryCmd = &cobra.Command{
	Use:   "summary <session-id>",
	Short: "Show the statistics of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore(databasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		runner := session.NewRunner(store, logger.Global())
		summary, err := runner.Summary(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Session: %s\n", summary.SessionID)
		fmt.Printf("Records:       %d\n", summary.TotalRecords)
		fmt.Printf("Matched:       %d (%.1f%%)\n", summary.MatchedRecords, summary.MatchRate*100)
		fmt.Printf("Unmatched:     %d\n", summary.Unmatched)
		fmt.Printf("Needs review:  %d\n", summary.NeedsReview)
		fmt.Printf("Pairs:         %d (exact %d, fuzzy %d, manual %d)\n",
			summary.MatchedPairs, summary.ExactMatches, summary.FuzzyMatches, summary.ManualMatches)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore(databasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSession(context.Background(), args[0]); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Session %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSummaryCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
