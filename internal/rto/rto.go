// Package rto judges completed rollback attempts against the recovery-time
// objectives declared per failure category. Evaluation is a pure function
// over the attempt and the frozen target table; it performs no I/O and has
// no side effects.
package rto

import (
	"time"

	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/rollback"
)

// Compliance wire values embedded in report artifacts.
const (
	Passed = "PASSED"
	Failed = "FAILED"
)

// Verdict is the compliance judgment for one attempt. It is derived from
// its RollbackAttempt and never persisted independently of it.
type Verdict struct {
	AttemptID string            `json:"attempt_id"`
	Category  category.Category `json:"category"`
	Target    time.Duration     `json:"target_ns"`
	Measured  time.Duration     `json:"measured_ns"`
	Compliant bool              `json:"compliant"`
}

// Compliance returns the wire form of the verdict.
func (v Verdict) Compliance() string {
	if v.Compliant {
		return Passed
	}
	return Failed
}

// Evaluate compares the attempt's measured duration against the declared
// target for its failure category. Compliant iff the duration is within the
// target (inclusive) AND the rollback functionally succeeded: a
// fast-but-failed rollback is never compliant. An unknown category fails
// outright rather than inheriting some other category's budget.
func Evaluate(attempt *rollback.Attempt, table *category.RTOTable) Verdict {
	v := Verdict{
		AttemptID: attempt.ID,
		Category:  attempt.Category,
		Measured:  attempt.Duration,
	}

	target, ok := table.Target(attempt.Category)
	if !ok {
		return v
	}
	v.Target = target
	v.Compliant = attempt.Succeeded() && attempt.Duration <= target
	return v
}
