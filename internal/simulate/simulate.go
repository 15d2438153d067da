// Package simulate deliberately induces failures against a target
// environment so the rollback path can be exercised safely. Test mode only:
// this is the one component besides the orchestrator's rollback action that
// is allowed to mutate the environment, and it must never run against a
// target that is not explicitly under test.
package simulate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/cluster"
	"github.com/climacast/recoverd/internal/config"
)

// Target is the slice of the cluster client the simulator disrupts and
// restores.
type Target interface {
	GetDeploymentStatus(ctx context.Context, name string) (cluster.DeploymentStatus, error)
	ScaleDeployment(ctx context.Context, name string, replicas int32) error
	GetConfigMap(ctx context.Context, name string) (map[string]string, error)
	UpdateConfigMap(ctx context.Context, name string, data map[string]string) error
}

// saved is the pre-disruption state captured before the first mutation, so
// cleanup can always restore regardless of how far the disruption got.
type saved struct {
	replicas int32
	config   map[string]string
}

// Simulator induces one deterministic disruption per failure category.
type Simulator struct {
	env     *config.Environment
	target  Target
	current *saved
	log     *zap.Logger
}

// New builds a Simulator for env. The caller is responsible for ensuring
// env is a test target.
func New(env *config.Environment, target Target, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{env: env, target: target, log: log}
}

// disruptions maps each category to the config-map mutation that induces
// it. deployment_failure is the exception: it scales the workload to zero
// instead of touching config.
var disruptions = map[category.Category]map[string]string{
	category.PerformanceDegradation: {"simulated_latency_ms": "5000"},
	category.SecurityIssue:          {"upstream_api_key": "simulated-invalid-key"},
	category.SearchIndexCorruption:  {"index_path": "/var/lib/forecast/missing-index.db"},
	category.ConfigError:            {"cache_ttl_seconds": "not-a-number"},
	category.MigrationFailure:       {"schema_version": "9999"},
	category.HealthCheckFailure:     {"healthz_force_fail": "true"},
}

// Simulate applies the disruption for cat. The pre-disruption state is
// captured before anything is touched, so Cleanup is safe even when
// Simulate itself fails halfway.
func (s *Simulator) Simulate(ctx context.Context, cat category.Category) error {
	if err := s.capture(ctx); err != nil {
		return fmt.Errorf("simulate: capture pre-disruption state: %w", err)
	}

	s.log.Warn("inducing failure",
		zap.String("category", string(cat)),
		zap.String("environment", s.env.Name))

	if cat == category.DeploymentFailure {
		if err := s.target.ScaleDeployment(ctx, s.env.Deployment, 0); err != nil {
			return fmt.Errorf("simulate: scale %s to zero: %w", s.env.Deployment, err)
		}
		return nil
	}

	mutation, ok := disruptions[cat]
	if !ok {
		return fmt.Errorf("simulate: no disruption defined for category %q", cat)
	}

	data := make(map[string]string, len(s.current.config)+len(mutation))
	for k, v := range s.current.config {
		data[k] = v
	}
	for k, v := range mutation {
		data[k] = v
	}
	if err := s.target.UpdateConfigMap(ctx, s.env.ConfigMap, data); err != nil {
		return fmt.Errorf("simulate: inject %s disruption: %w", cat, err)
	}
	return nil
}

// Cleanup restores the state captured before the disruption. Idempotent:
// restoring twice leaves the environment exactly as a single restore would,
// and calling it with nothing captured is a no-op. Callers defer it on
// every exit path.
func (s *Simulator) Cleanup(ctx context.Context, cat category.Category) error {
	if s.current == nil {
		return nil
	}

	s.log.Info("reversing simulated failure",
		zap.String("category", string(cat)),
		zap.String("environment", s.env.Name))

	if err := s.target.UpdateConfigMap(ctx, s.env.ConfigMap, s.current.config); err != nil {
		return fmt.Errorf("simulate: restore config: %w", err)
	}
	if err := s.target.ScaleDeployment(ctx, s.env.Deployment, s.current.replicas); err != nil {
		return fmt.Errorf("simulate: restore replicas: %w", err)
	}
	return nil
}

// capture snapshots the environment once per simulator. A second Simulate
// call keeps the original snapshot so cleanup restores the true baseline,
// not an already-disrupted state.
func (s *Simulator) capture(ctx context.Context) error {
	if s.current != nil {
		return nil
	}

	cm, err := s.target.GetConfigMap(ctx, s.env.ConfigMap)
	if err != nil {
		return err
	}
	copied := make(map[string]string, len(cm))
	for k, v := range cm {
		copied[k] = v
	}

	replicas := int32(1)
	if status, err := s.target.GetDeploymentStatus(ctx, s.env.Deployment); err == nil && status.DesiredReplicas > 0 {
		replicas = status.DesiredReplicas
	}

	s.current = &saved{replicas: replicas, config: copied}
	return nil
}
