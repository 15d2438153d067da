// Package precheck validates rollback prerequisites without mutating
// anything: the backup store holds a verifiable last-known-good release,
// the cluster answers, and the controller's directories are writable.
// The `validate` subcommand is a thin wrapper over a Runner.
package precheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/climacast/recoverd/internal/backup"
)

// Check is one prerequisite validation.
type Check interface {
	Name() string
	Run(ctx context.Context) CheckResult
}

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// RunResult holds the aggregate outcome of all checks.
type RunResult struct {
	AllPassed bool          `json:"all_passed"`
	Results   []CheckResult `json:"results"`
	Duration  string        `json:"duration"`
}

// Runner executes a collection of checks.
type Runner struct {
	mu     sync.RWMutex
	checks []Check
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Add appends a check to the runner.
func (r *Runner) Add(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, c)
}

// Run executes all checks sequentially and aggregates. Sequential on
// purpose: the output reads top to bottom in registration order and a
// hung cluster check does not interleave with the cheap local ones.
func (r *Runner) Run(ctx context.Context) RunResult {
	r.mu.RLock()
	checks := make([]Check, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	start := time.Now()
	var results []CheckResult
	allPassed := true
	for _, c := range checks {
		result := c.Run(ctx)
		results = append(results, result)
		if !result.Passed {
			allPassed = false
		}
	}
	return RunResult{
		AllPassed: allPassed,
		Results:   results,
		Duration:  time.Since(start).String(),
	}
}

// Checks returns the names of all registered checks.
func (r *Runner) Checks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.checks))
	for i, c := range r.checks {
		names[i] = c.Name()
	}
	return names
}

// DirWritableCheck validates that a directory exists (or can be created)
// and accepts writes.
type DirWritableCheck struct {
	Desc string
	Dir  string
}

func (c DirWritableCheck) Name() string { return "dir:" + c.Desc }
func (c DirWritableCheck) Run(_ context.Context) CheckResult {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: fmt.Sprintf("cannot create %s: %v", c.Dir, err)}
	}
	probe := filepath.Join(c.Dir, ".precheck")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: fmt.Sprintf("not writable: %s", c.Dir)}
	}
	os.Remove(probe)
	return CheckResult{Name: c.Name(), Passed: true, Message: "OK"}
}

// BackupStoreCheck validates that the store holds a last-known-good
// release whose manifest and search index verify.
type BackupStoreCheck struct {
	Store *backup.Store
}

func (c BackupStoreCheck) Name() string { return "backup:last-known-good" }
func (c BackupStoreCheck) Run(ctx context.Context) CheckResult {
	rel, err := c.Store.LastKnownGood()
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: err.Error()}
	}
	if err := c.Store.Verify(ctx, rel); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: fmt.Sprintf("release %s does not verify: %v", rel.Tag, err)}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: fmt.Sprintf("release %s verified", rel.Tag)}
}

// ClusterCheck validates control plane reachability through the given
// probe func, usually cluster.Client.Reachable.
type ClusterCheck struct {
	Probe func(ctx context.Context) error
}

func (c ClusterCheck) Name() string { return "cluster:reachable" }
func (c ClusterCheck) Run(ctx context.Context) CheckResult {
	if c.Probe == nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: "no cluster client configured"}
	}
	if err := c.Probe(ctx); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: err.Error()}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: "OK"}
}

// WebhookCheck validates that an alert webhook is configured. Rollbacks
// run without one, but silently unobserved recoveries are a policy
// violation in every environment this controller targets.
type WebhookCheck struct {
	URL string
}

func (c WebhookCheck) Name() string { return "alert:webhook" }
func (c WebhookCheck) Run(_ context.Context) CheckResult {
	if c.URL == "" {
		return CheckResult{Name: c.Name(), Passed: false, Message: "no webhook url configured"}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: "configured"}
}

// CustomCheck wraps an arbitrary function as a check.
type CustomCheck struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

func (c CustomCheck) Name() string                        { return c.CheckName }
func (c CustomCheck) Run(ctx context.Context) CheckResult { return c.Fn(ctx) }
