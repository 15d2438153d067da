package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/metrics"
)

// fakeAssessor returns scripted verdicts, sticking on the last one.
type fakeAssessor struct {
	verdicts  []health.Overall
	calls     int
	threshold int
}

func (f *fakeAssessor) Assess(_ context.Context) health.Snapshot {
	i := f.calls
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	f.calls++
	return health.Snapshot{
		Overall:  f.verdicts[i],
		Started:  time.Now().UTC(),
		Finished: time.Now().UTC(),
	}
}

func (f *fakeAssessor) SetThreshold(n int) { f.threshold = n }

func newMonitor(opts Options, fa *fakeAssessor, trigger Trigger) (*Monitor, *metrics.Set, *prometheus.Registry) {
	opts.Environment = "staging"
	reg := prometheus.NewRegistry()
	set := metrics.New(reg)
	return New(opts, fa, set, reg, trigger, nil), set, reg
}

func TestRunCycleTracksStreak(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{
		health.OverallUnhealthy,
		health.OverallUnhealthy,
		health.OverallHealthy,
	}}
	m, set, _ := newMonitor(Options{}, fa, nil)
	ctx := context.Background()

	m.runCycle(ctx)
	assert.Equal(t, 1, m.Streak())
	m.runCycle(ctx)
	assert.Equal(t, 2, m.Streak())
	m.runCycle(ctx)
	assert.Equal(t, 0, m.Streak())

	assert.Equal(t, 3.0, testutil.ToFloat64(set.MonitorCycles))
	assert.Equal(t, 0.0, testutil.ToFloat64(set.UnhealthyStreak.WithLabelValues("staging")))
}

func TestDegradedDoesNotCountTowardStreak(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallDegraded}}
	m, _, _ := newMonitor(Options{AutoTriggerAfter: 1}, fa, func(context.Context) error {
		t.Fatal("trigger must not fire on degraded")
		return nil
	})

	m.runCycle(context.Background())
	assert.Equal(t, 0, m.Streak())
}

func TestAutoTriggerFiresAfterConsecutiveUnhealthy(t *testing.T) {
	fired := 0
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallUnhealthy}}
	m, _, _ := newMonitor(Options{AutoTriggerAfter: 3}, fa, func(context.Context) error {
		fired++
		return nil
	})
	ctx := context.Background()

	m.runCycle(ctx)
	m.runCycle(ctx)
	assert.Zero(t, fired)
	m.runCycle(ctx)
	assert.Equal(t, 1, fired)
	// Streak resets after firing so one bad stretch triggers once.
	assert.Equal(t, 0, m.Streak())
}

func TestAutoTriggerDisabled(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallUnhealthy}}
	m, _, _ := newMonitor(Options{}, fa, func(context.Context) error {
		t.Fatal("trigger must not fire when disabled")
		return nil
	})
	for range 5 {
		m.runCycle(context.Background())
	}
	assert.Equal(t, 5, m.Streak())
}

func TestAutoTriggerErrorKeepsMonitoring(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallUnhealthy}}
	m, _, _ := newMonitor(Options{AutoTriggerAfter: 1}, fa, func(context.Context) error {
		return errors.New("lock held")
	})
	m.runCycle(context.Background())
	m.runCycle(context.Background())
	assert.Equal(t, 2, fa.calls)
}

func TestHealthzEndpoint(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallHealthy, health.OverallUnhealthy}}
	m, _, _ := newMonitor(Options{}, fa, nil)
	router := m.router()

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec
	}

	// No cycle yet.
	rec := get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)

	m.runCycle(context.Background())
	rec = get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	m.runCycle(context.Background())
	rec = get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestStatusEndpoint(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallUnhealthy}}
	m, _, _ := newMonitor(Options{}, fa, nil)
	m.runCycle(context.Background())

	rec := httptest.NewRecorder()
	m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"environment":"staging"`)
	assert.Contains(t, rec.Body.String(), `"unhealthy_streak":1`)
}

func TestMetricsEndpoint(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallHealthy}}
	m, _, _ := newMonitor(Options{}, fa, nil)
	m.runCycle(context.Background())

	rec := httptest.NewRecorder()
	m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recoverd_health_status")
	assert.Contains(t, rec.Body.String(), "recoverd_monitor_cycles_total")
}

func TestReloadThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	content := []byte(`
default_environment: staging
environments:
  staging:
    base_url: https://staging.climacast.io
    thresholds:
      non_healthy_count: 4
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallHealthy}}
	m, _, _ := newMonitor(Options{ConfigPath: path}, fa, nil)

	m.reloadThresholds()
	assert.Equal(t, 4, fa.threshold)
}

func TestReloadBadConfigKeepsThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recoverd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))

	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallHealthy}, threshold: 2}
	m, _, _ := newMonitor(Options{ConfigPath: path}, fa, nil)

	m.reloadThresholds()
	assert.Equal(t, 2, fa.threshold)
}

func TestRunStopsOnCancel(t *testing.T) {
	fa := &fakeAssessor{verdicts: []health.Overall{health.OverallHealthy}}
	m, _, _ := newMonitor(Options{Interval: 10 * time.Millisecond}, fa, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.GreaterOrEqual(t, fa.calls, 2)
}
