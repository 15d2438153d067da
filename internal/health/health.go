// Package health aggregates probe results into an environment verdict and
// runs the probe battery that produces them.
package health

import (
	"fmt"
	"time"

	"github.com/climacast/recoverd/internal/probe"
)

// Overall represents the derived verdict for a whole environment.
type Overall int

const (
	OverallHealthy   Overall = iota // no critical failure, non-healthy count within threshold
	OverallDegraded                 // non-healthy count over threshold
	OverallUnhealthy                // at least one critical probe failed
)

// DefaultNonHealthyThreshold is the count of non-healthy probes tolerated
// before the environment is judged degraded.
const DefaultNonHealthyThreshold = 2

// String returns the lower-case wire name of the Overall verdict.
func (o Overall) String() string {
	switch o {
	case OverallHealthy:
		return "healthy"
	case OverallDegraded:
		return "degraded"
	case OverallUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText makes Overall render as its string form in JSON artifacts.
func (o Overall) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the wire name back into an Overall verdict.
func (o *Overall) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*o = OverallHealthy
	case "degraded":
		*o = OverallDegraded
	case "unhealthy":
		*o = OverallUnhealthy
	default:
		return fmt.Errorf("health: unknown overall verdict %q", string(text))
	}
	return nil
}

// Snapshot is one full assessment cycle: every probe's result in battery
// order plus the derived verdict. Snapshots are immutable once built.
type Snapshot struct {
	Overall  Overall        `json:"overall"`
	Results  []probe.Result `json:"results"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
}

// Healthy reports whether the snapshot's overall verdict is healthy.
func (s Snapshot) Healthy() bool {
	return s.Overall == OverallHealthy
}

// NonHealthyCount counts degraded and failed results.
func (s Snapshot) NonHealthyCount() int {
	n := 0
	for _, r := range s.Results {
		if r.NonHealthy() {
			n++
		}
	}
	return n
}

// CriticalFailures lists the names of critical probes that failed.
func (s Snapshot) CriticalFailures() []string {
	var names []string
	for _, r := range s.Results {
		if r.Critical && r.Verdict == probe.Failed {
			names = append(names, r.Name)
		}
	}
	return names
}

// Determine is a pure logic function (no I/O) that aggregates probe results
// into an Overall verdict. The rule is asymmetric: a single failed critical
// probe renders the environment unhealthy outright, while non-critical
// problems must accumulate past the threshold before the verdict drops to
// degraded.
//
//	if any critical probe failed: unhealthy
//	else if count(non-healthy) > threshold: degraded
//	else: healthy
func Determine(results []probe.Result, threshold int) Overall {
	if threshold <= 0 {
		threshold = DefaultNonHealthyThreshold
	}

	nonHealthy := 0
	for _, r := range results {
		if r.Critical && r.Verdict == probe.Failed {
			return OverallUnhealthy
		}
		if r.NonHealthy() {
			nonHealthy++
		}
	}

	if nonHealthy > threshold {
		return OverallDegraded
	}
	return OverallHealthy
}

// NewSnapshot creates a Snapshot with the verdict set by calling Determine.
func NewSnapshot(results []probe.Result, threshold int, started, finished time.Time) Snapshot {
	return Snapshot{
		Overall:  Determine(results, threshold),
		Results:  results,
		Started:  started,
		Finished: finished,
	}
}
