package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// securityMarkers are the log lines counted as security events. The
// forecast service logs these on failed authentication and rejected
// credential use.
var securityMarkers = []string{
	"authentication failure",
	"unauthorized",
	"invalid api key",
	"security violation",
	"credential rejected",
}

// logTail is how far back the counter looks, per pod.
const logTail = 500

// LogTailer is the slice of the cluster client the security probe consumes.
type LogTailer interface {
	PodLogs(ctx context.Context, selector string, tailLines int64) (string, error)
}

// SecurityProbe derives a security-event counter from recent pod logs and
// compares it against a threshold.
type SecurityProbe struct {
	cluster   LogTailer
	selector  string
	threshold int
}

// NewSecurity builds the security-anomaly probe for pods matching selector.
func NewSecurity(c LogTailer, selector string, threshold int) *SecurityProbe {
	if threshold <= 0 {
		threshold = 10
	}
	return &SecurityProbe{cluster: c, selector: selector, threshold: threshold}
}

func (p *SecurityProbe) Name() string   { return "security_events" }
func (p *SecurityProbe) Critical() bool { return false }

func (p *SecurityProbe) Check(ctx context.Context) Result {
	threshold := fmt.Sprintf("<%d events", p.threshold)

	start := time.Now()
	logs, err := p.cluster.PodLogs(ctx, p.selector, logTail)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "logs unavailable", threshold, err.Error())
	}

	count := CountSecurityEvents(logs)
	observed := fmt.Sprintf("%d events", count)

	switch {
	case count >= p.threshold:
		return NewResult(p, Failed, latency, observed, threshold, "security events over threshold")
	case count*2 >= p.threshold:
		return NewResult(p, Degraded, latency, observed, threshold, "elevated security events")
	default:
		return NewResult(p, Healthy, latency, observed, threshold, "")
	}
}

// CountSecurityEvents counts marker occurrences in log output,
// case-insensitively.
func CountSecurityEvents(logs string) int {
	lower := strings.ToLower(logs)
	count := 0
	for _, marker := range securityMarkers {
		count += strings.Count(lower, marker)
	}
	return count
}
