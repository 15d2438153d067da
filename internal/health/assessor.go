package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/climacast/recoverd/internal/probe"
)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultCycleTimeout = 30 * time.Second

	// maxConcurrentProbes bounds the battery fan-out so a wide battery
	// cannot stampede the target service.
	maxConcurrentProbes = 4
)

// Assessor runs a fixed probe battery concurrently and aggregates the
// results into a Snapshot.
type Assessor struct {
	probes       []probe.Probe
	probeTimeout time.Duration
	cycleTimeout time.Duration
	log          *zap.Logger

	mu        sync.Mutex
	threshold int
}

// NewAssessor builds an Assessor over the given battery. Zero timeouts and
// threshold fall back to defaults; a nil logger is replaced with a no-op.
func NewAssessor(probes []probe.Probe, probeTimeout, cycleTimeout time.Duration, threshold int, log *zap.Logger) *Assessor {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if cycleTimeout <= 0 {
		cycleTimeout = defaultCycleTimeout
	}
	if threshold <= 0 {
		threshold = DefaultNonHealthyThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assessor{
		probes:       probes,
		probeTimeout: probeTimeout,
		cycleTimeout: cycleTimeout,
		threshold:    threshold,
		log:          log,
	}
}

// SetThreshold replaces the non-healthy count threshold. The monitor calls
// this on config reload; the next assessment cycle uses the new value.
func (a *Assessor) SetThreshold(n int) {
	if n <= 0 {
		n = DefaultNonHealthyThreshold
	}
	a.mu.Lock()
	a.threshold = n
	a.mu.Unlock()
}

// Assess runs every probe concurrently, each under its own timeout, joins
// under the cycle timeout, and aggregates. Probe order in the Snapshot
// matches battery order regardless of completion order.
func (a *Assessor) Assess(ctx context.Context) Snapshot {
	started := time.Now().UTC()

	cycleCtx, cancel := context.WithTimeout(ctx, a.cycleTimeout)
	defer cancel()

	results := make([]probe.Result, len(a.probes))
	g, gCtx := errgroup.WithContext(cycleCtx)
	g.SetLimit(maxConcurrentProbes)
	for i, p := range a.probes {
		g.Go(func() error {
			results[i] = probe.Run(gCtx, p, a.probeTimeout)
			return nil
		})
	}
	// Probes report failure as data, never as an error.
	_ = g.Wait()

	a.mu.Lock()
	threshold := a.threshold
	a.mu.Unlock()
	snap := NewSnapshot(results, threshold, started, time.Now().UTC())

	for _, r := range snap.Results {
		if r.NonHealthy() {
			a.log.Warn("probe non-healthy",
				zap.String("probe", r.Name),
				zap.String("verdict", r.Verdict.String()),
				zap.String("observed", r.Observed),
				zap.String("detail", r.Detail))
		}
	}
	a.log.Info("assessment complete",
		zap.String("overall", snap.Overall.String()),
		zap.Int("probes", len(snap.Results)),
		zap.Int("non_healthy", snap.NonHealthyCount()),
		zap.Duration("elapsed", snap.Finished.Sub(snap.Started)))

	return snap
}
