// Package metrics exposes recovery-controller state as Prometheus
// collectors. The monitor daemon serves them on /metrics; one-shot
// subcommands record into the same set so a scrape during a run sees
// the attempt counters move.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/probe"
)

// Set holds every collector registered against one registry. Tests build
// their own Set so assertions never race with other packages.
type Set struct {
	HealthStatus    *prometheus.GaugeVec
	ProbeVerdict    *prometheus.GaugeVec
	ProbeLatency    *prometheus.GaugeVec
	AttemptsTotal   *prometheus.CounterVec
	FallbacksTotal  prometheus.Counter
	RTOVerdicts     *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	MonitorCycles   prometheus.Counter
	UnhealthyStreak *prometheus.GaugeVec
}

// New registers all recoverd collectors with reg and returns the set.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		HealthStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoverd_health_status",
				Help: "Environment health verdict (0=healthy, 1=degraded, 2=unhealthy)",
			},
			[]string{"environment"},
		),
		ProbeVerdict: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoverd_probe_verdict",
				Help: "Last verdict per probe (0=healthy, 1=degraded, 2=failed, 3=skipped)",
			},
			[]string{"environment", "probe"},
		),
		ProbeLatency: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoverd_probe_latency_ms",
				Help: "Last observed probe latency in milliseconds",
			},
			[]string{"environment", "probe"},
		),
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoverd_rollback_attempts_total",
				Help: "Rollback attempts by failure category and outcome",
			},
			[]string{"category", "outcome"},
		),
		FallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recoverd_rollback_fallbacks_total",
				Help: "Rollback attempts that needed the fallback action",
			},
		),
		RTOVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoverd_rto_verdicts_total",
				Help: "RTO compliance verdicts by category",
			},
			[]string{"category", "compliance"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoverd_rollback_duration_seconds",
				Help:    "Measured rollback duration, execution through validation",
				Buckets: prometheus.ExponentialBuckets(5, 2, 9), // 5s to ~21min
			},
			[]string{"category"},
		),
		MonitorCycles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recoverd_monitor_cycles_total",
				Help: "Completed monitor assessment cycles",
			},
		),
		UnhealthyStreak: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoverd_monitor_unhealthy_streak",
				Help: "Consecutive unhealthy assessment cycles",
			},
			[]string{"environment"},
		),
	}
}

// NewDefault registers against the process-wide default registry.
func NewDefault() *Set {
	return New(prometheus.DefaultRegisterer)
}

func verdictValue(v probe.Verdict) float64 {
	switch v {
	case probe.Healthy:
		return 0
	case probe.Degraded:
		return 1
	case probe.Failed:
		return 2
	default:
		return 3
	}
}

func overallValue(o health.Overall) float64 {
	switch o {
	case health.OverallHealthy:
		return 0
	case health.OverallDegraded:
		return 1
	default:
		return 2
	}
}

// ObserveSnapshot records one assessment cycle into the gauges.
func (s *Set) ObserveSnapshot(env string, snap health.Snapshot) {
	s.HealthStatus.WithLabelValues(env).Set(overallValue(snap.Overall))
	for _, r := range snap.Results {
		s.ProbeVerdict.WithLabelValues(env, r.Name).Set(verdictValue(r.Verdict))
		s.ProbeLatency.WithLabelValues(env, r.Name).Set(float64(r.LatencyMs))
	}
}

// ObserveAttempt records one terminal rollback attempt.
func (s *Set) ObserveAttempt(category, outcome string, fallbackUsed bool, durationSeconds float64, compliance string) {
	s.AttemptsTotal.WithLabelValues(category, outcome).Inc()
	if fallbackUsed {
		s.FallbacksTotal.Inc()
	}
	if compliance != "" {
		s.RTOVerdicts.WithLabelValues(category, compliance).Inc()
	}
	s.AttemptDuration.WithLabelValues(category).Observe(durationSeconds)
}
