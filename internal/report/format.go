package report

import (
	"fmt"
	"strings"
)

// Summary renders a short plain-text recap for command output.
func Summary(a Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rollback %s (%s, %s)\n", a.RollbackID, a.Environment, a.Scenario)
	fmt.Fprintf(&b, "  rollback:    %s\n", passFail(a.Execution.RollbackSuccess))
	fmt.Fprintf(&b, "  validation:  %s\n", passFail(a.Execution.ValidationSuccess))
	fmt.Fprintf(&b, "  duration:    %.1fs\n", a.Execution.RollbackTimeSeconds)
	fmt.Fprintf(&b, "  rto:         %s\n", a.Execution.RTOCompliance)
	if a.Execution.FallbackUsed {
		b.WriteString("  fallback:    used\n")
	}
	return b.String()
}

// Markdown renders the artifact as a terminal-friendly markdown document.
func Markdown(a Artifact) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rollback Report %s\n\n", a.RollbackID)
	fmt.Fprintf(&b, "- **Environment**: %s\n", a.Environment)
	fmt.Fprintf(&b, "- **Scenario**: %s\n", a.Scenario)
	fmt.Fprintf(&b, "- **Timestamp**: %s\n", a.Timestamp)
	fmt.Fprintf(&b, "- **Outcome**: %s\n\n", a.Execution.Outcome)

	b.WriteString("## Execution\n\n")
	fmt.Fprintf(&b, "| Rollback | Validation | Duration | RTO | Fallback |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %.1fs | %s | %v |\n\n",
		passFail(a.Execution.RollbackSuccess),
		passFail(a.Execution.ValidationSuccess),
		a.Execution.RollbackTimeSeconds,
		a.Execution.RTOCompliance,
		a.Execution.FallbackUsed)

	if len(a.ValidationResults) > 0 {
		b.WriteString("## Validation\n\n")
		b.WriteString("| Probe | Verdict | Observed | Threshold |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, r := range a.ValidationResults {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r.Name, r.Verdict, r.Observed, r.Threshold)
		}
		b.WriteString("\n")
	}

	if len(a.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, r := range a.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return b.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
