// Package category defines the failure taxonomy and the recovery-time
// objective (RTO) attached to each failure class. The RTO table is built
// once at process start and is read-only afterwards.
package category

import (
	"fmt"
	"time"
)

// Category identifies a class of production failure that can trigger a
// rollback.
type Category string

const (
	DeploymentFailure      Category = "deployment_failure"
	PerformanceDegradation Category = "performance_degradation"
	SecurityIssue          Category = "security_issue"
	SearchIndexCorruption  Category = "search_index_corruption"
	ConfigError            Category = "config_error"
	MigrationFailure       Category = "migration_failure"
	HealthCheckFailure     Category = "health_check_failure"
)

// All returns every known category in stable order.
func All() []Category {
	return []Category{
		DeploymentFailure,
		PerformanceDegradation,
		SecurityIssue,
		SearchIndexCorruption,
		ConfigError,
		MigrationFailure,
		HealthCheckFailure,
	}
}

// Parse returns the Category named by s, or an error listing the valid names.
func Parse(s string) (Category, error) {
	for _, c := range All() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("category: unknown failure category %q (valid: %s)", s, names())
}

func names() string {
	out := ""
	for i, c := range All() {
		if i > 0 {
			out += ", "
		}
		out += string(c)
	}
	return out
}

// defaultTargets are the recovery-time objectives shipped with the
// controller. Values are tuned to the blast radius of each failure class:
// a security incident must be reverted fastest, a data migration is allowed
// the longest window.
var defaultTargets = map[Category]time.Duration{
	DeploymentFailure:      300 * time.Second,
	PerformanceDegradation: 180 * time.Second,
	SecurityIssue:          120 * time.Second,
	SearchIndexCorruption:  240 * time.Second,
	ConfigError:            120 * time.Second,
	MigrationFailure:       600 * time.Second,
	HealthCheckFailure:     180 * time.Second,
}

// RTOTable holds the per-category recovery-time objectives. Construct it
// with NewRTOTable; the table never changes after construction.
type RTOTable struct {
	targets map[Category]time.Duration
}

// NewRTOTable builds a table from the shipped defaults with optional
// per-category overrides in seconds. Unknown category names or non-positive
// values in overrides are rejected.
func NewRTOTable(overrides map[string]int) (*RTOTable, error) {
	targets := make(map[Category]time.Duration, len(defaultTargets))
	for c, d := range defaultTargets {
		targets[c] = d
	}
	for name, secs := range overrides {
		c, err := Parse(name)
		if err != nil {
			return nil, fmt.Errorf("category: rto override: %w", err)
		}
		if secs <= 0 {
			return nil, fmt.Errorf("category: rto override for %s must be positive, got %d", c, secs)
		}
		targets[c] = time.Duration(secs) * time.Second
	}
	return &RTOTable{targets: targets}, nil
}

// DefaultRTOTable returns a table with the shipped defaults.
func DefaultRTOTable() *RTOTable {
	t, _ := NewRTOTable(nil)
	return t
}

// Target returns the RTO for c. The second return is false for a category
// the table does not know.
func (t *RTOTable) Target(c Category) (time.Duration, bool) {
	d, ok := t.targets[c]
	return d, ok
}

// Seconds returns the category→seconds map embedded in report artifacts.
func (t *RTOTable) Seconds() map[string]float64 {
	out := make(map[string]float64, len(t.targets))
	for c, d := range t.targets {
		out[string(c)] = d.Seconds()
	}
	return out
}
