package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "recoverd",
	Short:         "Automated rollback controller for the ClimaCast forecast service",
	Long:          "recoverd simulates production failures, executes rollbacks to the last known good release, and measures recovery time against per-category RTO targets.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfig  string
	flagEnv     string
	flagVerbose bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("recoverd v0.3.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.recoverd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "Target environment (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.AddCommand(versionCmd)
}

// exitErr carries a specific process exit code through cobra. Commands
// that have already printed their outcome return one instead of a plain
// error so main does not print anything further.
type exitErr int

func (e exitErr) Error() string { return fmt.Sprintf("exit code %d", int(e)) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitErr
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
