package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/precheck"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check rollback prerequisites without mutating anything",
	Long:  "Verifies the backup store, cluster reachability, writable state directories and alert wiring. Exit 0 when everything passes, 1 when prerequisites are missing, 2 on any other error.",
	RunE:  runValidate,
}

var validateJSON bool

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Emit results as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		// Setup failures are not "prerequisite missing", they are the
		// command itself failing.
		fmt.Println(styleError.Render("validate: " + err.Error()))
		return exitErr(2)
	}
	defer rt.close()

	r := precheck.NewRunner()
	r.Add(precheck.DirWritableCheck{Desc: "reports", Dir: rt.cfg.ReportsDir()})
	r.Add(precheck.DirWritableCheck{Desc: "audit", Dir: rt.cfg.AuditDir()})
	r.Add(precheck.DirWritableCheck{Desc: "locks", Dir: rt.cfg.LocksDir()})
	r.Add(precheck.BackupStoreCheck{Store: rt.store})
	cluster := precheck.ClusterCheck{}
	if rt.cluster != nil {
		cluster.Probe = rt.cluster.Reachable
	}
	r.Add(cluster)
	r.Add(precheck.WebhookCheck{URL: rt.env.WebhookURL})

	result := r.Run(cmd.Context())

	if validateJSON {
		out, err := precheck.FormatRunResultJSON(result)
		if err != nil {
			return exitErr(2)
		}
		fmt.Println(out)
	} else {
		fmt.Print(precheck.FormatRunResult(result))
	}

	if !result.AllPassed {
		return exitErr(1)
	}
	return nil
}
