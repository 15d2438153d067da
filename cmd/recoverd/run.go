package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/audit"
	"github.com/climacast/recoverd/internal/category"
	"github.com/climacast/recoverd/internal/health"
	"github.com/climacast/recoverd/internal/history"
	"github.com/climacast/recoverd/internal/metrics"
	"github.com/climacast/recoverd/internal/report"
	"github.com/climacast/recoverd/internal/rollback"
	"github.com/climacast/recoverd/internal/rto"
)

var metricsSet = sync.OnceValue(metrics.NewDefault)

// executeRecovery runs one full rollback attempt for cat and handles all
// the bookkeeping a terminal attempt owes: report artifact, history row,
// audit records, metrics. Bookkeeping failures are logged, never fatal;
// the attempt already happened.
func executeRecovery(ctx context.Context, rt *runtime, cat category.Category) (report.Artifact, bool) {
	assessor := health.NewEnvironmentAssessor(rt.env, rt.cluster, rt.store, rt.log)
	orch := rollback.New(rt.env, rt.cluster, rt.store, assessor, rt.alerts, rt.cfg.LocksDir(), rt.log)

	attempt := orch.Run(ctx, cat)
	verdict := rto.Evaluate(attempt, rt.table)
	artifact := report.Build(attempt, verdict, rt.table)

	if path, err := report.Write(rt.cfg.ReportsDir(), artifact); err != nil {
		rt.log.Error("report write failed", zap.Error(err))
	} else {
		rt.log.Info("report written", zap.String("path", path))
	}

	recordHistory(rt, artifact, attempt)
	recordAudit(rt, artifact, attempt)
	metricsSet().ObserveAttempt(
		artifact.Scenario,
		artifact.Execution.Outcome,
		artifact.Execution.FallbackUsed,
		artifact.Execution.RollbackTimeSeconds,
		artifact.Execution.RTOCompliance,
	)

	functionalOK := artifact.Execution.RollbackSuccess && artifact.Execution.ValidationSuccess
	return artifact, functionalOK
}

func recordHistory(rt *runtime, a report.Artifact, attempt *rollback.Attempt) {
	db, err := history.Open(rt.cfg.HistoryPath())
	if err != nil {
		rt.log.Error("history open failed", zap.Error(err))
		return
	}
	defer db.Close()

	err = db.Record(history.Row{
		ID:              a.RollbackID,
		Environment:     a.Environment,
		Category:        a.Scenario,
		Outcome:         a.Execution.Outcome,
		FallbackUsed:    a.Execution.FallbackUsed,
		DurationSeconds: a.Execution.RollbackTimeSeconds,
		RTOCompliance:   a.Execution.RTOCompliance,
		StartedAt:       attempt.Started.UTC().Format(time.RFC3339),
		FinishedAt:      attempt.Finished.UTC().Format(time.RFC3339),
	})
	if err != nil {
		rt.log.Error("history record failed", zap.Error(err))
	}
}

func recordAudit(rt *runtime, a report.Artifact, attempt *rollback.Attempt) {
	err := rt.auditLog.Log(audit.Entry{
		Kind:        "attempt",
		AttemptID:   a.RollbackID,
		Environment: a.Environment,
		Category:    a.Scenario,
		Outcome:     a.Execution.Outcome,
		Message:     fmt.Sprintf("rollback %s, rto %s", a.Execution.Outcome, a.Execution.RTOCompliance),
		Duration:    attempt.Duration,
	})
	if err != nil {
		rt.log.Error("audit record failed", zap.Error(err))
	}

	for _, ev := range attempt.Audit {
		err := rt.auditLog.Log(audit.Entry{
			Kind:        "alert",
			AttemptID:   a.RollbackID,
			Environment: a.Environment,
			Category:    a.Scenario,
			Severity:    ev.Severity.String(),
			Message:     ev.Message,
		})
		if err != nil {
			rt.log.Error("audit record failed", zap.Error(err))
		}
	}

	if _, err := audit.MaybeCreateAnchor(rt.auditLog); err != nil {
		rt.log.Error("audit anchor failed", zap.Error(err))
	}
}

// printOutcome renders the run summary and returns the exit error for a
// functionally failed run. RTO compliance is printed but never gates the
// exit code.
func printOutcome(a report.Artifact, functionalOK bool) error {
	fmt.Println(report.Summary(a))
	if functionalOK {
		fmt.Println(styleSuccess.Render("Recovery succeeded."))
		if a.Execution.RTOCompliance != rto.Passed {
			fmt.Println(styleWarn.Render("RTO target missed; see report recommendations."))
		}
		return nil
	}
	fmt.Println(styleError.Render("Recovery failed: " + a.Execution.Outcome))
	return exitErr(1)
}
