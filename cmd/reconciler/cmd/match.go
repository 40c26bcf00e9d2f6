package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fiscal-reconciliation-service/internal/session"
	"fiscal-reconciliation-service/pkg/logger"
)

var (
	matchSessionID string
	matchRecordA   string
	matchRecordB   string
)

// matchCmd commits a manual match between two records
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Manually pair two records",
	Long: `Match pairs two records by hand. The records must belong to the same
session, form a valid document pairing, and not already be matched.
Manual matches carry full confidence and survive automatic re-runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore(databasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		runner := session.NewRunner(store, logger.Global())
		match, err := runner.CommitManualMatch(context.Background(), matchSessionID, matchRecordA, matchRecordB)
		if err != nil {
			return err
		}

		fmt.Printf("Matched %s with %s (%s, match %s)\n",
			match.RecordA, match.RecordB, match.Scheme, match.ID)
		return nil
	},
}

// unmatchCmd removes a committed match
var unmatchCmd = &cobra.Command{
	Use:   "unmatch <match-id>",
	Short: "Remove a committed match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore(databasePath())
		if err != nil {
			return err
		}
		defer store.Close()

		runner := session.NewRunner(store, logger.Global())
		if err := runner.Unmatch(context.Background(), matchSessionID, args[0]); err != nil {
			return err
		}

		fmt.Printf("Match %s removed.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(unmatchCmd)

	matchCmd.Flags().StringVar(&matchSessionID, "session", "", "session ID (required)")
	matchCmd.Flags().StringVar(&matchRecordA, "record-a", "", "first record ID (required)")
	matchCmd.Flags().StringVar(&matchRecordB, "record-b", "", "second record ID (required)")
	matchCmd.MarkFlagRequired("session")
	matchCmd.MarkFlagRequired("record-a")
	matchCmd.MarkFlagRequired("record-b")

	unmatchCmd.Flags().StringVar(&matchSessionID, "session", "", "session ID (required)")
	unmatchCmd.MarkFlagRequired("session")
}
