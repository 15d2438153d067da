package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run one assessment cycle and print the environment's health",
	Long:  "Runs the full probe battery once and prints each probe's verdict plus the aggregate. Informational: always exits 0, whatever the environment looks like.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		// Status never fails the caller; print what went wrong and stop.
		fmt.Println(styleError.Render("status unavailable: " + err.Error()))
		return nil
	}
	defer rt.close()

	assessor := health.NewEnvironmentAssessor(rt.env, rt.cluster, rt.store, rt.log)
	snap := assessor.Assess(cmd.Context())

	fmt.Println(styleBanner.Render("Environment: " + rt.env.Name))
	fmt.Printf("%-25s %-10s %8s  %-22s %s\n", "PROBE", "VERDICT", "LATENCY", "OBSERVED", "DETAIL")
	for _, r := range snap.Results {
		detail := r.Detail
		if detail == "" {
			detail = styleDim.Render("-")
		}
		fmt.Printf("%-25s %-10s %6dms  %-22s %s\n",
			r.Name, renderVerdict(r.Verdict.String()), r.LatencyMs, r.Observed, detail)
	}
	fmt.Printf("\nOverall: %s (%d non-healthy", renderVerdict(snap.Overall.String()), snap.NonHealthyCount())
	if crit := snap.CriticalFailures(); len(crit) > 0 {
		fmt.Printf(", critical: %v", crit)
	}
	fmt.Println(")")
	return nil
}
