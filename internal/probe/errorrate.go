package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ErrorRateProbe grades the share of error lines in recent pod logs against
// a percent threshold. Elevated errors degrade the verdict; double the
// threshold fails it.
type ErrorRateProbe struct {
	cluster    LogTailer
	selector   string
	maxPercent float64
}

// NewErrorRate builds the log-derived error-rate probe for pods matching
// selector.
func NewErrorRate(c LogTailer, selector string, maxPercent float64) *ErrorRateProbe {
	if maxPercent <= 0 {
		maxPercent = 5
	}
	return &ErrorRateProbe{cluster: c, selector: selector, maxPercent: maxPercent}
}

func (p *ErrorRateProbe) Name() string   { return "error_rate" }
func (p *ErrorRateProbe) Critical() bool { return false }

func (p *ErrorRateProbe) Check(ctx context.Context) Result {
	threshold := fmt.Sprintf("<=%.1f%%", p.maxPercent)

	start := time.Now()
	logs, err := p.cluster.PodLogs(ctx, p.selector, logTail)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "logs unavailable", threshold, err.Error())
	}

	total, errorLines := CountErrorLines(logs)
	if total == 0 {
		return NewResult(p, Skipped, latency, "no recent log output", threshold, "")
	}

	rate := 100 * float64(errorLines) / float64(total)
	observed := fmt.Sprintf("%.1f%% (%d/%d lines)", rate, errorLines, total)

	switch {
	case rate >= 2*p.maxPercent:
		return NewResult(p, Failed, latency, observed, threshold, "error rate far over threshold")
	case rate >= p.maxPercent:
		return NewResult(p, Degraded, latency, observed, threshold, "error rate over threshold")
	default:
		return NewResult(p, Healthy, latency, observed, threshold, "")
	}
}

// CountErrorLines reports total non-empty log lines and how many of them
// carry an error marker.
func CountErrorLines(logs string) (total, errors int) {
	for _, line := range strings.Split(logs, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if strings.Contains(strings.ToLower(line), "error") {
			errors++
		}
	}
	return total, errors
}
