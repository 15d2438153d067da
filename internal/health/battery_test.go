package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/config"
	"github.com/climacast/recoverd/internal/probe"
)

func batteryNames(probes []probe.Probe) []string {
	names := make([]string, len(probes))
	for i, p := range probes {
		names[i] = p.Name()
	}
	return names
}

func TestBatteryOrderIsStable(t *testing.T) {
	env, err := config.Default().Env("")
	require.NoError(t, err)
	store := backup.NewStore(t.TempDir())

	want := []string{
		"endpoint_availability",
		"workload_replicas",
		"resource_utilization",
		"search_subsystem",
		"security_events",
		"error_rate",
		"config_drift",
	}

	withCluster := Battery(env, nil, store)
	assert.Equal(t, want, batteryNames(withCluster))
}

func TestBatteryNilClusterSkipsClusterProbes(t *testing.T) {
	env, err := config.Default().Env("")
	require.NoError(t, err)
	store := backup.NewStore(t.TempDir())

	probes := Battery(env, nil, store)
	require.Len(t, probes, 7)

	res := probe.Run(context.Background(), probes[1], time.Second)
	assert.Equal(t, probe.Skipped, res.Verdict)
	assert.False(t, res.NonHealthy())

	// HTTP probes stay live so status still observes the service itself.
	_, isStatic := probes[0].(*probe.StaticProbe)
	assert.False(t, isStatic)
}
