package rto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/probe"
	"github.com/climacast/recoverd/internal/rollback"
)

func attempt(cat category.Category, d time.Duration, success bool) *rollback.Attempt {
	a := rollback.NewAttempt("staging", cat)
	a.Duration = d
	if success {
		a.Outcome = rollback.Success
		snap := health.NewSnapshot([]probe.Result{
			{Name: "endpoint_availability", Verdict: probe.Healthy, Critical: true},
		}, 2, time.Now(), time.Now())
		a.PostSnapshot = &snap
	} else {
		a.Outcome = rollback.ExecutionFailure
	}
	return a
}

func TestFailedOutcomeNeverCompliant(t *testing.T) {
	table := category.DefaultRTOTable()
	for _, cat := range category.All() {
		// One second is far inside every category's budget; it must not
		// matter when the rollback itself failed.
		v := Evaluate(attempt(cat, time.Second, false), table)
		assert.False(t, v.Compliant, "category %s: fast-but-failed must be FAILED", cat)
		assert.Equal(t, Failed, v.Compliance())
	}
}

func TestBoundaryDurationIsCompliant(t *testing.T) {
	table := category.DefaultRTOTable()
	for _, cat := range category.All() {
		target, ok := table.Target(cat)
		require.True(t, ok)

		v := Evaluate(attempt(cat, target, true), table)
		assert.True(t, v.Compliant, "category %s: duration == target is inclusive", cat)
		assert.Equal(t, Passed, v.Compliance())

		v = Evaluate(attempt(cat, target+time.Millisecond, true), table)
		assert.False(t, v.Compliant, "category %s: one ms over budget fails", cat)
	}
}

func TestSecurityIssueScenario(t *testing.T) {
	// RTO for security_issue is 120s; a successful run at 119.9s passes.
	table := category.DefaultRTOTable()
	v := Evaluate(attempt(category.SecurityIssue, 119900*time.Millisecond, true), table)
	assert.True(t, v.Compliant)
	assert.Equal(t, Passed, v.Compliance())
}

func TestIndexCorruptionOverBudget(t *testing.T) {
	// RTO for search_index_corruption is 240s; 250s with a functionally
	// successful rollback is reported FAILED on compliance alone.
	table := category.DefaultRTOTable()
	a := attempt(category.SearchIndexCorruption, 250*time.Second, true)
	v := Evaluate(a, table)
	assert.False(t, v.Compliant)
	assert.Equal(t, Failed, v.Compliance())
	assert.True(t, a.Succeeded(), "functional success is independent of compliance")
}

func TestUnknownCategoryFails(t *testing.T) {
	table := category.DefaultRTOTable()
	v := Evaluate(attempt(category.Category("made_up"), time.Second, true), table)
	assert.False(t, v.Compliant)
	assert.Zero(t, v.Target)
}

func TestVerdictCarriesAttemptIdentity(t *testing.T) {
	table := category.DefaultRTOTable()
	a := attempt(category.ConfigError, 30*time.Second, true)
	v := Evaluate(a, table)
	assert.Equal(t, a.ID, v.AttemptID)
	assert.Equal(t, category.ConfigError, v.Category)
	assert.Equal(t, 30*time.Second, v.Measured)
	assert.Equal(t, 120*time.Second, v.Target)
}
