package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent rollback attempts",
	RunE:  showHistory,
}

var historyLast int

func init() {
	historyCmd.Flags().IntVar(&historyLast, "last", 10, "Number of recent attempts to show")
	rootCmd.AddCommand(historyCmd)
}

func showHistory(cmd *cobra.Command, args []string) error {
	if historyLast < 1 {
		return fmt.Errorf("--last must be at least 1, got %d", historyLast)
	}

	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	db, err := history.Open(rt.cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	rows, err := db.Recent(historyLast)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(rows) == 0 {
		fmt.Println("No rollback attempts recorded.")
		return nil
	}

	fmt.Printf("%-28s %-12s %-24s %-20s %-8s %9s  %-7s %s\n",
		"ATTEMPT", "ENVIRONMENT", "SCENARIO", "OUTCOME", "FALLBACK", "DURATION", "RTO", "STARTED")
	for _, r := range rows {
		id := r.ID
		if len(id) > 28 {
			id = id[:28]
		}
		fallback := "-"
		if r.FallbackUsed {
			fallback = "yes"
		}
		fmt.Printf("%-28s %-12s %-24s %-20s %-8s %8.1fs  %-7s %s\n",
			id, r.Environment, r.Category, r.Outcome, fallback,
			r.DurationSeconds, r.RTOCompliance, r.StartedAt)
	}
	return nil
}
