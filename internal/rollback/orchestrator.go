package rollback

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/alert"
	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/cluster"
	"github.com/climacast/recoverd/internal/config"
	"github.com/climacast/recoverd/internal/envlock"
	"github.com/climacast/recoverd/internal/health"
)

// ClusterActions is the slice of the cluster client the orchestrator
// consumes. The rollback mutations live behind this interface so tests can
// fail them on demand.
type ClusterActions interface {
	Reachable(ctx context.Context) error
	GetDeploymentStatus(ctx context.Context, name string) (cluster.DeploymentStatus, error)
	SetImage(ctx context.Context, name, container, image string) error
	UpdateConfigMap(ctx context.Context, name string, data map[string]string) error
	ScaleDeployment(ctx context.Context, name string, replicas int32) error
	RolloutRestart(ctx context.Context, name string) error
}

// BackupSource resolves and vets the rollback target.
type BackupSource interface {
	LastKnownGood() (*backup.Release, error)
	Verify(ctx context.Context, r *backup.Release) error
}

// Assessor produces health snapshots for pre- and post-validation.
type Assessor interface {
	Assess(ctx context.Context) health.Snapshot
}

// Orchestrator runs the rollback state machine against one environment.
// A single Orchestrator drives one attempt at a time; the environment lock
// keeps separate processes from interleaving.
type Orchestrator struct {
	env      *config.Environment
	cluster  ClusterActions
	backups  BackupSource
	assessor Assessor
	alerts   *alert.Dispatcher
	lockDir  string
	log      *zap.Logger
}

// New builds an Orchestrator. A nil dispatcher disables alerting; a nil
// logger is replaced with a no-op.
func New(env *config.Environment, c ClusterActions, b BackupSource, a Assessor, d *alert.Dispatcher, lockDir string, log *zap.Logger) *Orchestrator {
	if d == nil {
		d = alert.NewDispatcher(nil, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		env:      env,
		cluster:  c,
		backups:  b,
		assessor: a,
		alerts:   d,
		lockDir:  lockDir,
		log:      log,
	}
}

// Run executes one full rollback attempt for the given failure category and
// always returns a terminal Attempt. Cancellation is honored only until
// Executing begins; once infrastructure mutation starts, the run continues
// on a detached context and is validated to completion.
func (o *Orchestrator) Run(ctx context.Context, cat category.Category) *Attempt {
	attempt := NewAttempt(o.env.Name, cat)
	o.log.Info("rollback attempt started",
		zap.String("attempt", attempt.ID),
		zap.String("environment", attempt.Environment),
		zap.String("category", string(cat)))

	release, ok := o.preValidate(ctx, attempt)
	if !ok {
		return attempt
	}

	if ctx.Err() != nil {
		o.cancel(attempt, "cancelled before execution began")
		return attempt
	}

	lock, err := envlock.Acquire(o.lockDir, o.env.Name, "rollback")
	if err != nil {
		o.fail(attempt, PreconditionFailure, alert.High, fmt.Sprintf("environment lock unavailable: %v", err))
		return attempt
	}
	defer lock.Release()

	// Past this point the run must finish: an abandoned half-applied
	// mutation is worse than any result we could report.
	detached := context.WithoutCancel(ctx)

	execStart := time.Now().UTC()
	if !o.execute(detached, attempt, release) {
		attempt.Duration = time.Since(execStart)
		return attempt
	}

	o.postValidate(detached, attempt)
	attempt.Duration = time.Since(execStart)

	if attempt.State == Reported {
		o.emit(attempt, alert.Info, fmt.Sprintf(
			"rollback %s completed in %.1fs (fallback used: %v)",
			attempt.ID, attempt.Duration.Seconds(), attempt.FallbackUsed), nil)
		o.log.Info("rollback attempt succeeded",
			zap.String("attempt", attempt.ID),
			zap.Duration("duration", attempt.Duration),
			zap.Bool("fallback_used", attempt.FallbackUsed))
	}
	return attempt
}

// preValidate confirms a usable rollback target and reachable tooling.
// Failing here is terminal without any mutation: never attempt a rollback
// with no verified fallback target.
func (o *Orchestrator) preValidate(ctx context.Context, attempt *Attempt) (*backup.Release, bool) {
	started := time.Now().UTC()
	if err := attempt.advance(PreValidating); err != nil {
		o.fail(attempt, PreconditionFailure, alert.High, err.Error())
		return nil, false
	}

	pre := o.assessor.Assess(ctx)
	attempt.PreSnapshot = &pre

	release, err := o.backups.LastKnownGood()
	if err != nil {
		attempt.logPhase(PreValidating, false, started, err.Error())
		o.fail(attempt, PreconditionFailure, alert.High, fmt.Sprintf("no usable rollback target: %v", err))
		return nil, false
	}
	if err := o.backups.Verify(ctx, release); err != nil {
		attempt.logPhase(PreValidating, false, started, err.Error())
		o.fail(attempt, PreconditionFailure, alert.High, fmt.Sprintf("rollback target %s failed verification: %v", release.Tag, err))
		return nil, false
	}
	if err := o.cluster.Reachable(ctx); err != nil {
		attempt.logPhase(PreValidating, false, started, err.Error())
		o.fail(attempt, PreconditionFailure, alert.High, fmt.Sprintf("cluster control plane unreachable: %v", err))
		return nil, false
	}

	attempt.TargetTag = release.Tag
	attempt.logPhase(PreValidating, true, started, "target "+release.Tag)
	o.log.Info("preconditions verified",
		zap.String("attempt", attempt.ID),
		zap.String("target", release.Tag),
		zap.String("pre_overall", pre.Overall.String()))
	return release, true
}

// execute applies the primary rollback action: re-point the deployment at
// the last known good release. If the primary action fails, exactly one
// emergency fallback is attempted: a bounded second try, never a retry
// loop, because repeated infrastructure mutation under uncertainty is
// riskier than giving up and reporting.
func (o *Orchestrator) execute(ctx context.Context, attempt *Attempt, release *backup.Release) bool {
	started := time.Now().UTC()
	if err := attempt.advance(Executing); err != nil {
		o.fail(attempt, ExecutionFailure, alert.High, err.Error())
		return false
	}

	primaryErr := o.primary(ctx, release)
	if primaryErr == nil {
		attempt.logPhase(Executing, true, started, "primary action applied release "+release.Tag)
		return true
	}

	o.emit(attempt, alert.High, fmt.Sprintf("primary rollback action failed, attempting fallback: %v", primaryErr), nil)
	o.log.Warn("primary rollback action failed",
		zap.String("attempt", attempt.ID),
		zap.Error(primaryErr))

	attempt.FallbackUsed = true
	if err := o.fallback(ctx, release); err != nil {
		attempt.logPhase(Executing, false, started,
			fmt.Sprintf("primary: %v; fallback: %v", primaryErr, err))
		o.fail(attempt, ExecutionFailure, alert.Critical,
			fmt.Sprintf("primary and fallback rollback actions both failed: %v; %v", primaryErr, err))
		return false
	}

	attempt.logPhase(Executing, true, started,
		fmt.Sprintf("primary failed (%v), emergency fallback applied", primaryErr))
	return true
}

// primary re-points the deployment at the release: image, config, replicas.
func (o *Orchestrator) primary(ctx context.Context, release *backup.Release) error {
	if err := o.cluster.SetImage(ctx, o.env.Deployment, o.env.Container, release.Image); err != nil {
		return err
	}
	if len(release.Config) > 0 {
		if err := o.cluster.UpdateConfigMap(ctx, o.env.ConfigMap, release.Config); err != nil {
			return err
		}
	}
	replicas := release.Replicas
	if replicas <= 0 {
		replicas = 1
	}
	return o.cluster.ScaleDeployment(ctx, o.env.Deployment, replicas)
}

// fallback is the emergency path: force a fresh rollout of whatever spec
// the deployment currently carries and make sure it is scaled up at all.
func (o *Orchestrator) fallback(ctx context.Context, release *backup.Release) error {
	replicas := release.Replicas
	if replicas <= 0 {
		replicas = 1
	}
	if err := o.cluster.ScaleDeployment(ctx, o.env.Deployment, replicas); err != nil {
		return err
	}
	return o.cluster.RolloutRestart(ctx, o.env.Deployment)
}

// postValidate waits for the environment to settle, then re-checks health a
// bounded number of times before judging the rollback.
func (o *Orchestrator) postValidate(ctx context.Context, attempt *Attempt) {
	started := time.Now().UTC()
	if err := attempt.advance(PostValidating); err != nil {
		o.fail(attempt, ValidationFailure, alert.Critical, err.Error())
		return
	}

	if settle := o.env.SettleDelay(); settle > 0 {
		o.log.Info("waiting for environment to settle",
			zap.String("attempt", attempt.ID),
			zap.Duration("settle", settle))
		sleep(ctx, settle)
	}

	attempts := o.env.Rollback.RecheckAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := o.env.RecheckInterval()

	var snap health.Snapshot
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(ctx, interval)
		}
		snap = o.assessor.Assess(ctx)
		attempt.PostSnapshot = &snap
		if snap.Healthy() {
			attempt.logPhase(PostValidating, true, started,
				fmt.Sprintf("healthy after %d of %d checks", i+1, attempts))
			if err := attempt.advance(Reported); err == nil {
				attempt.finish(Reported, Success)
			}
			return
		}
		o.log.Warn("post-validation check not healthy",
			zap.String("attempt", attempt.ID),
			zap.Int("check", i+1),
			zap.Int("of", attempts),
			zap.String("overall", snap.Overall.String()))
	}

	attempt.logPhase(PostValidating, false, started,
		fmt.Sprintf("still %s after %d checks", snap.Overall, attempts))
	o.fail(attempt, ValidationFailure, alert.Critical,
		fmt.Sprintf("environment still %s after %d post-rollback checks", snap.Overall, attempts))
}

// cancel seals the attempt as cancelled before execution began.
func (o *Orchestrator) cancel(attempt *Attempt, detail string) {
	attempt.finish(Failed, Cancelled)
	o.emit(attempt, alert.Warning, "rollback "+attempt.ID+" "+detail, nil)
	o.log.Warn("rollback attempt cancelled", zap.String("attempt", attempt.ID))
}

// fail seals the attempt as failed with the given outcome and raises an
// alert sized to the damage.
func (o *Orchestrator) fail(attempt *Attempt, outcome Outcome, severity alert.Severity, detail string) {
	attempt.finish(Failed, outcome)
	o.emit(attempt, severity, fmt.Sprintf("rollback %s failed (%s): %s", attempt.ID, outcome, detail), map[string]string{
		"environment": attempt.Environment,
		"category":    string(attempt.Category),
		"outcome":     outcome.String(),
	})
	o.log.Error("rollback attempt failed",
		zap.String("attempt", attempt.ID),
		zap.String("outcome", outcome.String()),
		zap.String("detail", detail))
}

// emit dispatches an alert and retains it in the attempt audit trail when
// severe enough.
func (o *Orchestrator) emit(attempt *Attempt, severity alert.Severity, message string, details map[string]string) {
	e := alert.NewEvent(severity, "recoverd", "rollback", message, details)
	attempt.recordAlert(e)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	o.alerts.Dispatch(ctx, e)
}

// sleep pauses for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
