// Package monitor runs the controller's continuous mode: assess the
// environment on an interval, export the result over HTTP and Prometheus,
// and optionally trigger a rollback after sustained unhealthiness.
package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/config"
	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/metrics"
)

const defaultInterval = 30 * time.Second

// Assessor produces one health snapshot per cycle. SetThreshold is how a
// config reload reaches the running battery.
type Assessor interface {
	Assess(ctx context.Context) health.Snapshot
	SetThreshold(n int)
}

// Trigger starts a rollback when auto-trigger fires. It runs on the monitor
// goroutine, so a slow rollback pauses assessment cycles, which is the
// point: there is nothing useful to assess mid-rollback.
type Trigger func(ctx context.Context) error

// Options configures a Monitor.
type Options struct {
	Environment      string
	Interval         time.Duration
	Listen           string // empty disables the HTTP server
	AutoTriggerAfter int    // consecutive unhealthy cycles; 0 disables
	ConfigPath       string // watched for threshold reload; empty disables
}

// Monitor is the continuous-mode loop.
type Monitor struct {
	opts     Options
	assessor Assessor
	set      *metrics.Set
	gatherer prometheus.Gatherer
	trigger  Trigger
	log      *zap.Logger

	mu       sync.RWMutex
	last     health.Snapshot
	haveSnap bool
	streak   int
}

// New builds a Monitor. trigger may be nil when auto-trigger is disabled.
func New(opts Options, a Assessor, set *metrics.Set, g prometheus.Gatherer, trigger Trigger, log *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{opts: opts, assessor: a, set: set, gatherer: g, trigger: trigger, log: log}
}

// Run assesses immediately, then on every tick, until ctx is cancelled.
// The HTTP server and config watcher run alongside and stop with ctx.
func (m *Monitor) Run(ctx context.Context) error {
	if m.opts.Listen != "" {
		srv, err := m.startServer(ctx)
		if err != nil {
			return err
		}
		defer srv.stop()
	}
	if m.opts.ConfigPath != "" {
		stop, err := m.watchConfig(ctx)
		if err != nil {
			// A broken watcher degrades reload, not monitoring.
			m.log.Warn("config watch unavailable", zap.Error(err))
		} else {
			defer stop()
		}
	}

	m.log.Info("monitor started",
		zap.String("environment", m.opts.Environment),
		zap.Duration("interval", m.opts.Interval),
		zap.Int("auto_trigger_after", m.opts.AutoTriggerAfter))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle performs one assessment, updates state and metrics, and fires
// the auto-trigger when the unhealthy streak reaches the configured count.
func (m *Monitor) runCycle(ctx context.Context) {
	snap := m.assessor.Assess(ctx)

	m.mu.Lock()
	m.last = snap
	m.haveSnap = true
	if snap.Overall == health.OverallUnhealthy {
		m.streak++
	} else {
		m.streak = 0
	}
	streak := m.streak
	m.mu.Unlock()

	if m.set != nil {
		m.set.ObserveSnapshot(m.opts.Environment, snap)
		m.set.MonitorCycles.Inc()
		m.set.UnhealthyStreak.WithLabelValues(m.opts.Environment).Set(float64(streak))
	}

	if m.opts.AutoTriggerAfter > 0 && streak >= m.opts.AutoTriggerAfter && m.trigger != nil {
		m.log.Warn("auto-trigger firing",
			zap.Int("unhealthy_streak", streak),
			zap.Strings("critical_failures", snap.CriticalFailures()))
		if err := m.trigger(ctx); err != nil {
			m.log.Error("auto-triggered rollback failed", zap.Error(err))
		}
		m.mu.Lock()
		m.streak = 0
		m.mu.Unlock()
	}
}

// Last returns the most recent snapshot and whether one exists yet.
func (m *Monitor) Last() (health.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.haveSnap
}

// Streak returns the current consecutive unhealthy cycle count.
func (m *Monitor) Streak() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streak
}

// watchConfig reloads probe thresholds when the config file changes.
// Editors replace files rather than rewriting them in place, so the watch
// is on the directory and filtered by name.
func (m *Monitor) watchConfig(ctx context.Context) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("monitor: watch config: %w", err)
	}
	dir := filepath.Dir(m.opts.ConfigPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("monitor: watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(m.opts.ConfigPath) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				m.reloadThresholds()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
	return func() { watcher.Close() }, nil
}

func (m *Monitor) reloadThresholds() {
	cfg, err := config.Load(m.opts.ConfigPath)
	if err != nil {
		m.log.Warn("config reload failed, keeping previous thresholds", zap.Error(err))
		return
	}
	env, err := cfg.Env(m.opts.Environment)
	if err != nil {
		m.log.Warn("config reload failed, keeping previous thresholds", zap.Error(err))
		return
	}
	m.assessor.SetThreshold(env.Thresholds.NonHealthyCount)
	m.log.Info("thresholds reloaded",
		zap.Int("non_healthy_count", env.Thresholds.NonHealthyCount))
}
