package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/simulate"
)

var testCmd = &cobra.Command{
	Use:   "test <scenario>",
	Short: "Simulate a failure, roll back, and measure recovery time",
	Long:  "Injects the named failure scenario into the target environment, runs the full rollback flow against it, and reports functional success and RTO compliance. The exit code reflects functional success only.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTest,
}

var testSkipCleanup bool

func init() {
	testCmd.Flags().BoolVar(&testSkipCleanup, "skip-cleanup", false, "Leave the simulated failure in place after the run")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	cat, err := category.Parse(args[0])
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

	fmt.Println(styleBanner.Render(fmt.Sprintf("Recovery drill: %s on %s", cat, rt.env.Name)))

	sim := simulate.New(rt.env, rt.cluster, rt.log)
	return withInjection(ctx, sim, cat, testSkipCleanup, rt.log, func(ctx context.Context) error {
		artifact, functionalOK := executeRecovery(ctx, rt, cat)
		return printOutcome(artifact, functionalOK)
	})
}

// simulator is the slice of the scenario runner the drill flow drives.
type simulator interface {
	Simulate(ctx context.Context, cat category.Category) error
	Cleanup(ctx context.Context, cat category.Category) error
}

// withInjection runs fn with the failure scenario injected, reverting the
// injection on every exit path. The revert is registered before the
// injection starts: a disruption that errors after partially applying is
// still rolled back, and Cleanup is a no-op when nothing was captured.
// A drill must never strand a broken environment.
func withInjection(ctx context.Context, sim simulator, cat category.Category, skipCleanup bool, log *zap.Logger, fn func(context.Context) error) error {
	if !skipCleanup {
		defer func() {
			if err := sim.Cleanup(context.WithoutCancel(ctx), cat); err != nil {
				log.Error("simulation cleanup failed", zap.Error(err))
			}
		}()
	}

	if err := sim.Simulate(ctx, cat); err != nil {
		return fmt.Errorf("failure injection: %w", err)
	}
	return fn(ctx)
}
