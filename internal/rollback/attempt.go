// Package rollback drives the phased rollback workflow: validate
// preconditions, execute the rollback action, validate the outcome. Every
// run produces a complete Attempt record, success or failure; partial runs
// are never discarded, because a half-finished rollback is exactly the run
// an operator most needs to see.
package rollback

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/climacast/recoverd/internal/alert"
	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/health"
)

// Phase is one state of the rollback state machine.
type Phase int

const (
	Idle Phase = iota
	PreValidating
	Executing
	PostValidating
	Reported // terminal success
	Failed   // terminal failure
)

// String returns the lower-case wire name of the Phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PreValidating:
		return "pre_validating"
	case Executing:
		return "executing"
	case PostValidating:
		return "post_validating"
	case Reported:
		return "reported"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText makes Phase render as its string form in artifacts.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsTerminal reports whether p is a terminal state.
func (p Phase) IsTerminal() bool {
	return p == Reported || p == Failed
}

// Outcome is the typed result of a completed run. Phases return outcomes,
// not exit codes; the mapping to a process exit code happens once, at the
// CLI boundary.
type Outcome int

const (
	Success Outcome = iota
	PreconditionFailure
	ExecutionFailure
	ValidationFailure
	Cancelled
)

// String returns the lower-case wire name of the Outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case PreconditionFailure:
		return "precondition_failure"
	case ExecutionFailure:
		return "execution_failure"
	case ValidationFailure:
		return "validation_failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText makes Outcome render as its string form in artifacts.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// PhaseLog records one phase's execution inside an attempt.
type PhaseLog struct {
	Phase    Phase     `json:"phase"`
	Passed   bool      `json:"passed"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Detail   string    `json:"detail,omitempty"`
}

// Attempt is the record of one rollback run. It is created when the run
// starts, filled in as phases complete, and immutable once the run reaches
// a terminal phase.
type Attempt struct {
	ID          string            `json:"id"`
	Environment string            `json:"environment"`
	Category    category.Category `json:"category"`
	Started     time.Time         `json:"started"`
	Finished    time.Time         `json:"finished"`

	// Duration is the user-visible outage window: entry into Executing
	// through exit from PostValidating, not merely the primary action's
	// wall time.
	Duration time.Duration `json:"duration_ns"`

	State        Phase   `json:"state"`
	Outcome      Outcome `json:"outcome"`
	FallbackUsed bool    `json:"fallback_used"`
	TargetTag    string  `json:"target_tag,omitempty"`

	PreSnapshot  *health.Snapshot `json:"pre_snapshot,omitempty"`
	PostSnapshot *health.Snapshot `json:"post_snapshot,omitempty"`

	Phases []PhaseLog    `json:"phases"`
	Audit  []alert.Event `json:"audit,omitempty"`
}

// NewAttempt creates an Attempt in the Idle state with a time-derived id.
func NewAttempt(environment string, cat category.Category) *Attempt {
	short := strings.SplitN(uuid.New().String(), "-", 2)[0]
	now := time.Now().UTC()
	return &Attempt{
		ID:          fmt.Sprintf("rb-%s-%s", now.Format("20060102T150405Z"), short),
		Environment: environment,
		Category:    cat,
		Started:     now,
		State:       Idle,
	}
}

// transitions lists the legal moves of the state machine.
var transitions = map[Phase][]Phase{
	Idle:           {PreValidating, Failed},
	PreValidating:  {Executing, Failed},
	Executing:      {PostValidating, Failed},
	PostValidating: {Reported, Failed},
}

// advance moves the attempt to next, enforcing the machine's edges.
func (a *Attempt) advance(next Phase) error {
	if a.State.IsTerminal() {
		return fmt.Errorf("rollback: attempt %s is terminal in state %s", a.ID, a.State)
	}
	for _, legal := range transitions[a.State] {
		if legal == next {
			a.State = next
			return nil
		}
	}
	return fmt.Errorf("rollback: illegal transition %s -> %s for attempt %s", a.State, next, a.ID)
}

// logPhase appends one phase record.
func (a *Attempt) logPhase(p Phase, passed bool, started time.Time, detail string) {
	a.Phases = append(a.Phases, PhaseLog{
		Phase:    p,
		Passed:   passed,
		Started:  started,
		Finished: time.Now().UTC(),
		Detail:   detail,
	})
}

// recordAlert retains high and critical alerts in the attempt's audit trail.
// Lower severities are delivery-only.
func (a *Attempt) recordAlert(e alert.Event) {
	if e.Severity >= alert.High {
		a.Audit = append(a.Audit, e)
	}
}

// finish seals the attempt in a terminal phase. The finish timestamp never
// precedes the start timestamp, even on a degenerate clock.
func (a *Attempt) finish(terminal Phase, outcome Outcome) {
	a.State = terminal
	a.Outcome = outcome
	a.Finished = time.Now().UTC()
	if a.Finished.Before(a.Started) {
		a.Finished = a.Started
	}
}

// Succeeded reports whether the run reached Reported with a healthy
// post-validation snapshot. A zero-exit rollback command with an unhealthy
// environment is still a failure.
func (a *Attempt) Succeeded() bool {
	return a.Outcome == Success && a.PostSnapshot != nil && a.PostSnapshot.Healthy()
}

// ValidationPassed reports whether post-validation observed a healthy
// environment.
func (a *Attempt) ValidationPassed() bool {
	return a.PostSnapshot != nil && a.PostSnapshot.Healthy()
}

// FailedPhase returns the phase that sank the run, or Reported for a
// successful one. Report recommendations key off this.
func (a *Attempt) FailedPhase() Phase {
	for _, pl := range a.Phases {
		if !pl.Passed {
			return pl.Phase
		}
	}
	return Reported
}
