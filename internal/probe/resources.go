package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/climacast/recoverd/internal/cluster"
)

// failMultiplier marks the point where resource pressure stops being a
// degradation and becomes a failure: 1.5x the configured threshold.
const failMultiplier = 1.5

// UsageLister is the slice of the cluster client the resource probe consumes.
type UsageLister interface {
	PodUsages(ctx context.Context, selector string) ([]cluster.PodUsage, error)
}

// ResourceProbe compares the worst pod's CPU and memory consumption against
// configured per-pod ceilings. Resource pressure alone never takes the
// service down, so the probe is not critical.
type ResourceProbe struct {
	cluster        UsageLister
	selector       string
	cpuMilliMax    int64
	memoryBytesMax int64
}

// NewResources builds the utilization probe for pods matching selector.
func NewResources(c UsageLister, selector string, cpuMilliMax, memoryBytesMax int64) *ResourceProbe {
	return &ResourceProbe{
		cluster:        c,
		selector:       selector,
		cpuMilliMax:    cpuMilliMax,
		memoryBytesMax: memoryBytesMax,
	}
}

func (p *ResourceProbe) Name() string   { return "resource_utilization" }
func (p *ResourceProbe) Critical() bool { return false }

func (p *ResourceProbe) Check(ctx context.Context) Result {
	threshold := fmt.Sprintf("cpu<=%dm mem<=%dMi", p.cpuMilliMax, p.memoryBytesMax/(1024*1024))

	start := time.Now()
	usages, err := p.cluster.PodUsages(ctx, p.selector)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "metrics unavailable", threshold, err.Error())
	}
	if len(usages) == 0 {
		// Replica problems are the workload probe's verdict to give.
		return NewResult(p, Skipped, latency, "no pods reporting metrics", threshold, "")
	}

	var worstCPU, worstMem int64
	for _, u := range usages {
		if u.CPUMilli > worstCPU {
			worstCPU = u.CPUMilli
		}
		if u.MemoryBytes > worstMem {
			worstMem = u.MemoryBytes
		}
	}

	observed := fmt.Sprintf("cpu=%dm mem=%dMi", worstCPU, worstMem/(1024*1024))
	ratio := float64(worstCPU) / float64(p.cpuMilliMax)
	if memRatio := float64(worstMem) / float64(p.memoryBytesMax); memRatio > ratio {
		ratio = memRatio
	}

	switch {
	case ratio >= failMultiplier:
		return NewResult(p, Failed, latency, observed, threshold, "resource consumption far over ceiling")
	case ratio >= 1.0:
		return NewResult(p, Degraded, latency, observed, threshold, "resource consumption over ceiling")
	default:
		return NewResult(p, Healthy, latency, observed, threshold, "")
	}
}
