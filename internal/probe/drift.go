package probe

import (
	"context"
	"time"

	"github.com/climacast/recoverd/internal/backup"
)

// ConfigMapGetter is the slice of the cluster client the drift probe
// consumes.
type ConfigMapGetter interface {
	GetConfigMap(ctx context.Context, name string) (map[string]string, error)
}

// ExpectedConfigFn supplies the config digest of the release the environment
// is supposed to run. Backed by the backup store's last-known-good manifest.
type ExpectedConfigFn func(ctx context.Context) (string, error)

// DriftProbe compares the deployed config map against the expected release
// digest. Drift is judged worth flagging, not worth declaring an outage
// over, so the probe is not critical.
type DriftProbe struct {
	cluster   ConfigMapGetter
	configMap string
	expected  ExpectedConfigFn
}

// NewDrift builds the configuration-drift probe.
func NewDrift(c ConfigMapGetter, configMap string, expected ExpectedConfigFn) *DriftProbe {
	return &DriftProbe{cluster: c, configMap: configMap, expected: expected}
}

func (p *DriftProbe) Name() string   { return "config_drift" }
func (p *DriftProbe) Critical() bool { return false }

func (p *DriftProbe) Check(ctx context.Context) Result {
	start := time.Now()

	expectedHash, err := p.expected(ctx)
	if err != nil {
		// With no reference release there is nothing to compare against.
		return NewResult(p, Skipped, time.Since(start), "no reference release", "match release hash", err.Error())
	}

	deployed, err := p.cluster.GetConfigMap(ctx, p.configMap)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "config map unavailable", "match release hash", err.Error())
	}

	deployedHash := backup.ConfigHash(deployed)
	if deployedHash != expectedHash {
		return NewResult(p, Degraded, latency, "hash "+shortHash(deployedHash), "hash "+shortHash(expectedHash),
			"deployed config drifted from release manifest")
	}
	return NewResult(p, Healthy, latency, "hash "+shortHash(deployedHash), "hash "+shortHash(expectedHash), "")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
