package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/category"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a rollback against a real failure",
	Long:  "Runs the rollback flow without injecting anything: pre-validation, rollback to last known good, post-validation, report. Use when a real incident has already put the environment in a bad state.",
	RunE:  runExecute,
}

var executeCategory string

func init() {
	executeCmd.Flags().StringVar(&executeCategory, "category", string(category.DeploymentFailure), "Failure category driving the RTO target")
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	cat, err := category.Parse(executeCategory)
	if err != nil {
		return err
	}

	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(styleBanner.Render(fmt.Sprintf("Rollback: %s on %s", cat, rt.env.Name)))

	artifact, functionalOK := executeRecovery(ctx, rt, cat)
	return printOutcome(artifact, functionalOK)
}
