package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/cluster"
	"github.com/climacast/recoverd/internal/config"
	"github.com/climacast/recoverd/internal/probe"
)

// Battery assembles the fixed probe set for an environment. The order is
// stable; snapshots list results in exactly this order. With a nil cluster
// client the cluster-backed slots become skipped placeholders so `status`
// still renders a full battery outside the cluster.
func Battery(env *config.Environment, c *cluster.Client, store *backup.Store) []probe.Probe {
	sla := time.Duration(env.Thresholds.LatencySLAMs) * time.Millisecond

	expected := func(ctx context.Context) (string, error) {
		r, err := store.LastKnownGood()
		if err != nil {
			return "", err
		}
		return r.ConfigHash, nil
	}

	if c == nil {
		const detail = "cluster unreachable, probe skipped"
		return []probe.Probe{
			probe.NewHTTP("endpoint_availability", env.HealthURL(), sla, true, nil),
			probe.NewSkipped("workload_replicas", detail),
			probe.NewSkipped("resource_utilization", detail),
			probe.NewHTTP("search_subsystem", env.SearchURL, sla, true, nil),
			probe.NewSkipped("security_events", detail),
			probe.NewSkipped("error_rate", detail),
			probe.NewSkipped("config_drift", detail),
		}
	}

	return []probe.Probe{
		probe.NewHTTP("endpoint_availability", env.HealthURL(), sla, true, nil),
		probe.NewWorkload(c, env.Deployment),
		probe.NewResources(c, env.Selector, env.Thresholds.CPUMilliMax, env.Thresholds.MemoryMBMax*1024*1024),
		probe.NewHTTP("search_subsystem", env.SearchURL, sla, true, nil),
		probe.NewSecurity(c, env.Selector, env.Thresholds.SecurityEvents),
		probe.NewErrorRate(c, env.Selector, env.Thresholds.ErrorRatePercent),
		probe.NewDrift(c, env.ConfigMap, expected),
	}
}

// NewEnvironmentAssessor builds the standard assessor for env using its
// configured timeouts and threshold.
func NewEnvironmentAssessor(env *config.Environment, c *cluster.Client, store *backup.Store, log *zap.Logger) *Assessor {
	return NewAssessor(Battery(env, c, store), env.ProbeTimeout(), env.CycleTimeout(), env.Thresholds.NonHealthyCount, log)
}
