// Package probe defines the health-probe contract and the individual probes
// run against a deployed environment. A probe performs one bounded check
// against one target and reports its verdict as data: transport failures and
// timeouts become failed results, never errors, so the caller can always
// aggregate a full battery.
package probe

import (
	"context"
	"fmt"
	"time"
)

// Verdict is the outcome of a single probe invocation.
type Verdict int

const (
	Healthy Verdict = iota
	Degraded
	Failed
	Skipped
)

// String returns the lower-case wire name of the Verdict.
func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText makes Verdict render as its string form in JSON artifacts.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses the wire name back into a Verdict.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*v = Healthy
	case "degraded":
		*v = Degraded
	case "failed":
		*v = Failed
	case "skipped":
		*v = Skipped
	default:
		return fmt.Errorf("probe: unknown verdict %q", string(text))
	}
	return nil
}

// Result is one probe observation. Results are produced fresh on every
// invocation and never mutated afterwards.
type Result struct {
	Name      string        `json:"name"`
	Verdict   Verdict       `json:"verdict"`
	Critical  bool          `json:"critical"`
	LatencyMs int64         `json:"latency_ms"`
	Observed  string        `json:"observed"`
	Threshold string        `json:"threshold"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	latency   time.Duration
}

// Latency returns the observed probe latency.
func (r Result) Latency() time.Duration {
	if r.latency > 0 {
		return r.latency
	}
	return time.Duration(r.LatencyMs) * time.Millisecond
}

// NonHealthy reports whether the result counts against the environment in
// aggregation. Skipped probes are neutral.
func (r Result) NonHealthy() bool {
	return r.Verdict == Degraded || r.Verdict == Failed
}

// Probe performs one health check against one target.
type Probe interface {
	// Name identifies the probe in snapshots and reports.
	Name() string
	// Critical marks probes whose failure alone renders the environment
	// unhealthy (service endpoint down, zero ready replicas).
	Critical() bool
	// Check runs the probe. Implementations must honor ctx cancellation and
	// report failures as Results, not errors.
	Check(ctx context.Context) Result
}

// Run invokes p with a hard upper bound. Even a probe that ignores its
// context is cut off: on expiry the caller receives a failed Result whose
// latency equals the timeout, and the stray goroutine is left to finish in
// the background.
func Run(ctx context.Context, p Probe, timeout time.Duration) Result {
	if timeout <= 0 {
		return NewResult(p, Failed, 0, "", "", "probe timeout must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- p.Check(ctx)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return NewResult(p, Failed, timeout, "", "", fmt.Sprintf("timed out after %s", timeout))
	}
}

// NewResult assembles a Result for p with the probe's identity fields filled.
func NewResult(p Probe, v Verdict, latency time.Duration, observed, threshold, detail string) Result {
	return Result{
		Name:      p.Name(),
		Verdict:   v,
		Critical:  p.Critical(),
		LatencyMs: latency.Milliseconds(),
		Observed:  observed,
		Threshold: threshold,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		latency:   latency,
	}
}
