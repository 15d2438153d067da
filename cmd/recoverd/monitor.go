package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/logging"
	"github.com/climacast/recoverd/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously assess the environment and export metrics",
	Long:  "Runs the probe battery on an interval, serves /healthz, /status and /metrics, hot-reloads thresholds when the config file changes, and can auto-trigger a rollback after sustained unhealthiness.",
	RunE:  runMonitor,
}

var (
	monitorListen   string
	monitorInterval time.Duration
	monitorAuto     int
	monitorCategory string
)

func init() {
	monitorCmd.Flags().StringVar(&monitorListen, "listen", "", "HTTP listen address (default from config)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Assessment interval (default from config)")
	monitorCmd.Flags().IntVar(&monitorAuto, "auto-trigger-after", -1, "Consecutive unhealthy cycles before triggering a rollback, 0 disables (default from config)")
	monitorCmd.Flags().StringVar(&monitorCategory, "category", string(category.HealthCheckFailure), "Failure category for auto-triggered rollbacks")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cat, err := category.Parse(monitorCategory)
	if err != nil {
		return err
	}

	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	// The monitor is long-lived; switch to the rotated JSON log when one
	// is configured so restarts do not lose history.
	if rt.cfg.Monitor.LogFile != "" {
		opts := logging.DefaultOptions()
		opts.FilePath = rt.cfg.Monitor.LogFile
		if flagVerbose {
			opts.Level = "debug"
		}
		fileLog, err := logging.New(opts)
		if err != nil {
			return err
		}
		rt.log = fileLog
	}

	listen := rt.cfg.Monitor.Listen
	if monitorListen != "" {
		listen = monitorListen
	}
	interval := time.Duration(rt.cfg.Monitor.IntervalSeconds) * time.Second
	if monitorInterval > 0 {
		interval = monitorInterval
	}
	autoAfter := rt.cfg.Monitor.AutoTriggerAfter
	if monitorAuto >= 0 {
		autoAfter = monitorAuto
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	assessor := health.NewEnvironmentAssessor(rt.env, rt.cluster, rt.store, rt.log)

	var trigger monitor.Trigger
	if autoAfter > 0 {
		if rt.cluster == nil {
			return fmt.Errorf("auto-trigger requires a reachable cluster")
		}
		trigger = func(ctx context.Context) error {
			_, functionalOK := executeRecovery(ctx, rt, cat)
			if !functionalOK {
				return fmt.Errorf("auto-triggered rollback did not recover the environment")
			}
			return nil
		}
	}

	m := monitor.New(monitor.Options{
		Environment:      rt.env.Name,
		Interval:         interval,
		Listen:           listen,
		AutoTriggerAfter: autoAfter,
		ConfigPath:       path,
	}, assessor, metricsSet(), prometheus.DefaultGatherer, trigger, rt.log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
