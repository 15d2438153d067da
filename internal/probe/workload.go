package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/climacast/recoverd/internal/cluster"
)

// DeploymentStatuser is the slice of the cluster client the workload probe
// consumes.
type DeploymentStatuser interface {
	GetDeploymentStatus(ctx context.Context, name string) (cluster.DeploymentStatus, error)
}

// WorkloadProbe checks ready replicas against the desired count. Zero ready
// replicas means the service is down, so this probe is critical.
type WorkloadProbe struct {
	cluster    DeploymentStatuser
	deployment string
}

// NewWorkload builds the replica-readiness probe for one deployment.
func NewWorkload(c DeploymentStatuser, deployment string) *WorkloadProbe {
	return &WorkloadProbe{cluster: c, deployment: deployment}
}

func (p *WorkloadProbe) Name() string   { return "workload_replicas" }
func (p *WorkloadProbe) Critical() bool { return true }

func (p *WorkloadProbe) Check(ctx context.Context) Result {
	start := time.Now()
	status, err := p.cluster.GetDeploymentStatus(ctx, p.deployment)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "status unavailable", ">=1 ready", err.Error())
	}

	observed := fmt.Sprintf("%d/%d ready", status.ReadyReplicas, status.DesiredReplicas)
	threshold := fmt.Sprintf("%d ready", status.DesiredReplicas)

	switch {
	case status.ReadyReplicas == 0:
		return NewResult(p, Failed, latency, observed, threshold,
			fmt.Sprintf("deployment %s has zero ready replicas", p.deployment))
	case status.ReadyReplicas < status.DesiredReplicas:
		return NewResult(p, Degraded, latency, observed, threshold, "replicas below desired count")
	default:
		return NewResult(p, Healthy, latency, observed, threshold, "")
	}
}
