// Package config loads the controller's YAML configuration, applies
// defaults and RECOVERD_* environment overrides, and resolves the
// per-environment settings a run operates against.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// maxRecheckAttempts caps post-validation health re-checks. Larger values
// in config are clamped, never honored.
const maxRecheckAttempts = 5

// Thresholds are the per-environment probe grading knobs.
type Thresholds struct {
	LatencySLAMs     int     `yaml:"latency_sla_ms"`
	ErrorRatePercent float64 `yaml:"error_rate_percent"`
	CPUMilliMax      int64   `yaml:"cpu_milli_max"`
	MemoryMBMax      int64   `yaml:"memory_mb_max"`
	SecurityEvents   int     `yaml:"security_events"`
	NonHealthyCount  int     `yaml:"non_healthy_count"`
}

// Rollback tunes the orchestrator's post-validation pacing.
type Rollback struct {
	SettleDelaySeconds     int `yaml:"settle_delay_seconds"`
	RecheckAttempts        int `yaml:"recheck_attempts"`
	RecheckIntervalSeconds int `yaml:"recheck_interval_seconds"`
}

// Monitor configures continuous mode.
type Monitor struct {
	IntervalSeconds  int    `yaml:"interval_seconds"`
	Listen           string `yaml:"listen"`
	AutoTriggerAfter int    `yaml:"auto_trigger_after"`
	LogFile          string `yaml:"log_file"`
}

// Environment is one named deployment target of the forecast service.
type Environment struct {
	Name                string         `yaml:"-"`
	BaseURL             string         `yaml:"base_url"`
	HealthPath          string         `yaml:"health_path"`
	SearchURL           string         `yaml:"search_url"`
	Namespace           string         `yaml:"namespace"`
	Deployment          string         `yaml:"deployment"`
	Selector            string         `yaml:"selector"`
	Container           string         `yaml:"container"`
	ConfigMap           string         `yaml:"config_map"`
	Kubeconfig          string         `yaml:"kubeconfig"`
	KubeContext         string         `yaml:"kube_context"`
	BackupDir           string         `yaml:"backup_dir"`
	WebhookURL          string         `yaml:"webhook_url"`
	ProbeTimeoutSeconds int            `yaml:"probe_timeout_seconds"`
	CycleTimeoutSeconds int            `yaml:"cycle_timeout_seconds"`
	Thresholds          Thresholds     `yaml:"thresholds"`
	Rollback            Rollback       `yaml:"rollback"`
	RTOOverrides        map[string]int `yaml:"rto_overrides"`
}

// Config is the full controller configuration.
type Config struct {
	DefaultEnvironment string                  `yaml:"default_environment"`
	BaseDir            string                  `yaml:"base_dir"`
	Monitor            Monitor                 `yaml:"monitor"`
	Environments       map[string]*Environment `yaml:"environments"`
}

func defaultThresholds() Thresholds {
	return Thresholds{
		LatencySLAMs:     2000,
		ErrorRatePercent: 5,
		CPUMilliMax:      500,
		MemoryMBMax:      512,
		SecurityEvents:   10,
		NonHealthyCount:  2,
	}
}

func defaultRollback() Rollback {
	return Rollback{
		SettleDelaySeconds:     10,
		RecheckAttempts:        maxRecheckAttempts,
		RecheckIntervalSeconds: 10,
	}
}

func defaultEnvironment(name, baseDir string) *Environment {
	return &Environment{
		Name:                name,
		BaseURL:             "http://forecast-api.forecast.svc.cluster.local:8080",
		HealthPath:          "/healthz",
		SearchURL:           "http://forecast-api.forecast.svc.cluster.local:8080/v1/search/healthz",
		Namespace:           "forecast",
		Deployment:          "forecast-api",
		Selector:            "app=forecast-api",
		ConfigMap:           "forecast-config",
		BackupDir:           filepath.Join(baseDir, "backups", name),
		ProbeTimeoutSeconds: 10,
		CycleTimeoutSeconds: 30,
		Thresholds:          defaultThresholds(),
		Rollback:            defaultRollback(),
	}
}

// Default returns the built-in configuration with a single staging
// environment.
func Default() *Config {
	home, _ := os.UserHomeDir()
	baseDir := filepath.Join(home, ".recoverd")
	return &Config{
		DefaultEnvironment: "staging",
		BaseDir:            baseDir,
		Monitor: Monitor{
			IntervalSeconds: 60,
			Listen:          "127.0.0.1:9815",
		},
		Environments: map[string]*Environment{
			"staging": defaultEnvironment("staging", baseDir),
		},
	}
}

// Load reads path and merges it over the defaults. A missing file yields
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.BaseDir == "" {
		home, _ := os.UserHomeDir()
		cfg.BaseDir = filepath.Join(home, ".recoverd")
	}
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = "staging"
	}
	if cfg.Monitor.IntervalSeconds <= 0 {
		cfg.Monitor.IntervalSeconds = 60
	}
	if cfg.Monitor.Listen == "" {
		cfg.Monitor.Listen = "127.0.0.1:9815"
	}
	if len(cfg.Environments) == 0 {
		cfg.Environments = map[string]*Environment{
			cfg.DefaultEnvironment: defaultEnvironment(cfg.DefaultEnvironment, cfg.BaseDir),
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv folds RECOVERD_* process-environment overrides into the config.
func (c *Config) applyEnv() {
	getStr := func(key, cur string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return cur
	}
	getInt := func(key string, cur int) int {
		val := os.Getenv(key)
		if val == "" {
			return cur
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return cur
		}
		return n
	}

	c.DefaultEnvironment = getStr("RECOVERD_ENVIRONMENT", c.DefaultEnvironment)
	c.BaseDir = getStr("RECOVERD_BASE_DIR", c.BaseDir)
	c.Monitor.IntervalSeconds = getInt("RECOVERD_MONITOR_INTERVAL", c.Monitor.IntervalSeconds)
	c.Monitor.AutoTriggerAfter = getInt("RECOVERD_AUTO_TRIGGER_AFTER", c.Monitor.AutoTriggerAfter)

	for _, env := range c.Environments {
		env.BaseURL = getStr("RECOVERD_BASE_URL", env.BaseURL)
		env.SearchURL = getStr("RECOVERD_SEARCH_URL", env.SearchURL)
		env.Kubeconfig = getStr("RECOVERD_KUBECONFIG", env.Kubeconfig)
		env.BackupDir = getStr("RECOVERD_BACKUP_DIR", env.BackupDir)
		env.WebhookURL = getStr("RECOVERD_WEBHOOK_URL", env.WebhookURL)
	}
}

// Env resolves the named environment, or the default when name is empty,
// backfilling zero values so callers never see an unset knob.
func (c *Config) Env(name string) (*Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
	}
	env, ok := c.Environments[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown environment %q", name)
	}
	env.Name = name

	def := defaultEnvironment(name, c.BaseDir)
	if env.BaseURL == "" {
		env.BaseURL = def.BaseURL
	}
	if env.HealthPath == "" {
		env.HealthPath = def.HealthPath
	}
	if env.SearchURL == "" {
		env.SearchURL = def.SearchURL
	}
	if env.Namespace == "" {
		env.Namespace = def.Namespace
	}
	if env.Deployment == "" {
		env.Deployment = def.Deployment
	}
	if env.Selector == "" {
		env.Selector = def.Selector
	}
	if env.ConfigMap == "" {
		env.ConfigMap = def.ConfigMap
	}
	if env.BackupDir == "" {
		env.BackupDir = def.BackupDir
	}
	if env.ProbeTimeoutSeconds <= 0 {
		env.ProbeTimeoutSeconds = def.ProbeTimeoutSeconds
	}
	if env.CycleTimeoutSeconds <= 0 {
		env.CycleTimeoutSeconds = def.CycleTimeoutSeconds
	}

	t := &env.Thresholds
	dt := defaultThresholds()
	if t.LatencySLAMs <= 0 {
		t.LatencySLAMs = dt.LatencySLAMs
	}
	if t.ErrorRatePercent <= 0 {
		t.ErrorRatePercent = dt.ErrorRatePercent
	}
	if t.CPUMilliMax <= 0 {
		t.CPUMilliMax = dt.CPUMilliMax
	}
	if t.MemoryMBMax <= 0 {
		t.MemoryMBMax = dt.MemoryMBMax
	}
	if t.SecurityEvents <= 0 {
		t.SecurityEvents = dt.SecurityEvents
	}
	if t.NonHealthyCount <= 0 {
		t.NonHealthyCount = dt.NonHealthyCount
	}

	r := &env.Rollback
	dr := defaultRollback()
	if r.SettleDelaySeconds < 0 {
		r.SettleDelaySeconds = dr.SettleDelaySeconds
	}
	if r.RecheckAttempts <= 0 || r.RecheckAttempts > maxRecheckAttempts {
		r.RecheckAttempts = maxRecheckAttempts
	}
	if r.RecheckIntervalSeconds <= 0 {
		r.RecheckIntervalSeconds = dr.RecheckIntervalSeconds
	}

	return env, nil
}

// HealthURL is the full URL of the service health endpoint.
func (e *Environment) HealthURL() string {
	return e.BaseURL + e.HealthPath
}

// ProbeTimeout returns the per-probe bound.
func (e *Environment) ProbeTimeout() time.Duration {
	return time.Duration(e.ProbeTimeoutSeconds) * time.Second
}

// CycleTimeout returns the whole-battery bound.
func (e *Environment) CycleTimeout() time.Duration {
	return time.Duration(e.CycleTimeoutSeconds) * time.Second
}

// SettleDelay returns the pause before post-validation begins.
func (e *Environment) SettleDelay() time.Duration {
	return time.Duration(e.Rollback.SettleDelaySeconds) * time.Second
}

// RecheckInterval returns the pause between post-validation re-checks.
func (e *Environment) RecheckInterval() time.Duration {
	return time.Duration(e.Rollback.RecheckIntervalSeconds) * time.Second
}

// ReportsDir is where run artifacts are written.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.BaseDir, "reports")
}

// AuditDir is where the hash-chained audit trail lives.
func (c *Config) AuditDir() string {
	return filepath.Join(c.BaseDir, "audit")
}

// LocksDir is where environment locks live.
func (c *Config) LocksDir() string {
	return filepath.Join(c.BaseDir, "locks")
}

// HistoryPath is the sqlite attempt-history database file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.BaseDir, "history.db")
}

// EnsureDirs creates the directory tree the controller writes under.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.ReportsDir(),
		c.AuditDir(),
		c.LocksDir(),
		filepath.Join(c.BaseDir, "backups"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", d, err)
		}
	}
	return nil
}
