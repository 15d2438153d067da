// Package report renders rollback attempts into the stable JSON artifact
// operators and tooling consume. Exactly one artifact is written per run,
// success or failure; its key names are a compatibility contract.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/climacast/recoverd/internal/alert"
	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/probe"
	"github.com/climacast/recoverd/internal/rollback"
	"github.com/climacast/recoverd/internal/rto"
)

// Execution is the run-outcome block of the artifact. Functional success
// and RTO compliance are reported independently: a slow-but-successful
// rollback is functionally fine and compliance-failed at the same time.
type Execution struct {
	RollbackSuccess     bool    `json:"rollback_success"`
	ValidationSuccess   bool    `json:"validation_success"`
	RollbackTimeSeconds float64 `json:"rollback_time_seconds"`
	RTOCompliance       string  `json:"rto_compliance"`
	FallbackUsed        bool    `json:"fallback_used"`
	Outcome             string  `json:"outcome"`
}

// Artifact is the persisted report for one rollback attempt.
type Artifact struct {
	RollbackID        string              `json:"rollback_id"`
	Environment       string              `json:"environment"`
	Scenario          string              `json:"scenario"`
	Timestamp         string              `json:"timestamp"`
	Execution         Execution           `json:"execution"`
	RTOTargets        map[string]float64  `json:"rto_targets"`
	ValidationResults []probe.Result      `json:"validation_results"`
	Phases            []rollback.PhaseLog `json:"phases"`
	Audit             []alert.Event       `json:"audit,omitempty"`
	Recommendations   []string            `json:"recommendations"`
}

// Build assembles the artifact for a terminal attempt.
func Build(attempt *rollback.Attempt, verdict rto.Verdict, table *category.RTOTable) Artifact {
	execPassed := false
	for _, pl := range attempt.Phases {
		if pl.Phase == rollback.Executing && pl.Passed {
			execPassed = true
		}
	}

	var validation []probe.Result
	if attempt.PostSnapshot != nil {
		validation = attempt.PostSnapshot.Results
	} else if attempt.PreSnapshot != nil {
		// The run never reached post-validation; the pre snapshot is the
		// only probe-level detail there is.
		validation = attempt.PreSnapshot.Results
	}

	return Artifact{
		RollbackID:  attempt.ID,
		Environment: attempt.Environment,
		Scenario:    string(attempt.Category),
		Timestamp:   attempt.Finished.UTC().Format(time.RFC3339),
		Execution: Execution{
			RollbackSuccess:     execPassed,
			ValidationSuccess:   attempt.ValidationPassed(),
			RollbackTimeSeconds: attempt.Duration.Seconds(),
			RTOCompliance:       verdict.Compliance(),
			FallbackUsed:        attempt.FallbackUsed,
			Outcome:             attempt.Outcome.String(),
		},
		RTOTargets:        table.Seconds(),
		ValidationResults: validation,
		Phases:            attempt.Phases,
		Audit:             attempt.Audit,
		Recommendations:   recommend(attempt, verdict),
	}
}

// recommend derives operator guidance from deterministic rules keyed on
// which phase failed. No heuristics: the same attempt always yields the
// same recommendations.
func recommend(attempt *rollback.Attempt, verdict rto.Verdict) []string {
	var recs []string

	switch attempt.Outcome {
	case rollback.PreconditionFailure:
		recs = append(recs,
			"Verify the backup store holds a readable release manifest and a valid last-known-good pointer.",
			"Confirm cluster credentials and API server reachability before retrying.",
		)
	case rollback.ExecutionFailure:
		recs = append(recs,
			"Inspect deployment events and image registry availability; both primary and fallback actions failed.",
			"Perform a manual rollback before re-running; the environment may be mid-mutation.",
		)
	case rollback.ValidationFailure:
		recs = append(recs,
			"The rollback applied but the environment never returned to healthy; inspect the failing probes below.",
		)
		if attempt.PostSnapshot != nil {
			if names := attempt.PostSnapshot.CriticalFailures(); len(names) > 0 {
				recs = append(recs, "Critical probes failing: "+strings.Join(names, ", ")+".")
			}
		}
	case rollback.Cancelled:
		recs = append(recs,
			"The run was cancelled before execution began; no infrastructure was mutated.",
		)
	}

	if attempt.Outcome == rollback.Success {
		if attempt.FallbackUsed {
			recs = append(recs,
				"The primary rollback path failed and the emergency fallback recovered the service; investigate the primary path before the next incident.",
			)
		}
		if !verdict.Compliant {
			recs = append(recs, fmt.Sprintf(
				"Recovery took %.1fs against a %.0fs objective for %s; review rollout and settle timings.",
				verdict.Measured.Seconds(), verdict.Target.Seconds(), verdict.Category))
		}
	}

	return recs
}

// Write persists the artifact under dir as <rollback_id>.json with an
// atomic temp-file rename.
func Write(dir string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("report: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal artifact: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, a.RollbackID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("report: write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("report: rename artifact: %w", err)
	}
	return path, nil
}

// Load reads one artifact back from disk.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("report: read %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return a, nil
}

// Latest returns the path of the most recent artifact in dir. Attempt ids
// are time-prefixed, so lexical order is chronological order.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "rb-*.json"))
	if err != nil {
		return "", fmt.Errorf("report: list %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("report: no artifacts in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
