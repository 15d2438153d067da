package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/alert"
	"github.com/climacast/recoverd/internal/audit"
	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/cluster"
	"github.com/climacast/recoverd/internal/config"
	"github.com/climacast/recoverd/internal/logging"
	"github.com/climacast/recoverd/internal/redact"
)

// runtime is the wiring every subcommand shares: config, logger, stores,
// alert channels and (when reachable) the cluster client.
type runtime struct {
	cfg      *config.Config
	env      *config.Environment
	log      *zap.Logger
	table    *category.RTOTable
	store    *backup.Store
	redactor *redact.Redactor
	alerts   *alert.Dispatcher
	auditLog *audit.Logger
	cluster  *cluster.Client // nil when the control plane is unavailable
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".recoverd", "config.yaml"), nil
}

// newRuntime builds the shared wiring. With needCluster the control plane
// must answer; without it a missing cluster degrades to nil and the
// caller works with what remains.
func newRuntime(needCluster bool) (*runtime, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	logOpts := logging.DefaultOptions()
	if flagVerbose {
		logOpts.Level = "debug"
	}
	log, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	env, err := cfg.Env(flagEnv)
	if err != nil {
		return nil, err
	}

	table, err := category.NewRTOTable(env.RTOOverrides)
	if err != nil {
		return nil, err
	}

	redactor := redact.New(redact.DefaultConfig())

	alerts := alert.NewDispatcher(log, redactor)
	if err := alerts.Register(alert.NewLogChannel(log), alert.Info); err != nil {
		return nil, err
	}
	if env.WebhookURL != "" {
		// The webhook carries everything warning and above; info stays
		// log-only.
		if err := alerts.Register(alert.NewWebhook(env.WebhookURL, log), alert.Warning); err != nil {
			return nil, err
		}
	}

	auditLog, err := audit.NewLogger(cfg.AuditDir())
	if err != nil {
		return nil, err
	}
	auditLog.SetRedactor(redactor)

	rt := &runtime{
		cfg:      cfg,
		env:      env,
		log:      log,
		table:    table,
		store:    backup.NewStore(env.BackupDir),
		redactor: redactor,
		alerts:   alerts,
		auditLog: auditLog,
	}

	client, err := cluster.NewClient(env.Kubeconfig, env.KubeContext, env.Namespace)
	if err != nil {
		if needCluster {
			return nil, fmt.Errorf("cluster client: %w", err)
		}
		log.Warn("cluster client unavailable, continuing without it", zap.Error(err))
	} else {
		rt.cluster = client
	}
	return rt, nil
}

func (rt *runtime) close() {
	_ = rt.log.Sync()
}
