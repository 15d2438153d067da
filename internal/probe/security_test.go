package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLogTailer struct {
	logs string
	err  error
}

func (f fakeLogTailer) PodLogs(ctx context.Context, selector string, tailLines int64) (string, error) {
	return f.logs, f.err
}

func TestCountSecurityEvents(t *testing.T) {
	logs := strings.Join([]string{
		"2026-03-14T09:30:00Z INFO request served path=/v1/forecast",
		"2026-03-14T09:30:02Z WARN Authentication Failure for key prefix=wx_",
		"2026-03-14T09:30:05Z WARN unauthorized access to /v1/admin",
		"2026-03-14T09:30:07Z INFO cache hit ratio=0.93",
		"2026-03-14T09:30:09Z ERROR invalid api key presented",
	}, "\n")
	assert.Equal(t, 3, CountSecurityEvents(logs), "markers must be counted case-insensitively")
	assert.Equal(t, 0, CountSecurityEvents("all quiet"))
}

func TestSecurityProbeQuietLogs(t *testing.T) {
	p := NewSecurity(fakeLogTailer{logs: "INFO request served\nINFO request served"}, "app=forecast-api", 10)
	r := p.Check(context.Background())

	assert.Equal(t, Healthy, r.Verdict)
	assert.Equal(t, "security_events", r.Name)
	assert.False(t, r.Critical)
	assert.Equal(t, "0 events", r.Observed)
}

func TestSecurityProbeElevatedDegraded(t *testing.T) {
	logs := strings.Repeat("WARN unauthorized\n", 6)
	p := NewSecurity(fakeLogTailer{logs: logs}, "app=forecast-api", 10)
	r := p.Check(context.Background())

	assert.Equal(t, Degraded, r.Verdict, "half the threshold is elevated but not failing")
}

func TestSecurityProbeOverThresholdFailed(t *testing.T) {
	logs := strings.Repeat("WARN security violation\n", 12)
	p := NewSecurity(fakeLogTailer{logs: logs}, "app=forecast-api", 10)
	r := p.Check(context.Background())

	assert.Equal(t, Failed, r.Verdict)
	assert.Equal(t, "12 events", r.Observed)
}

func TestSecurityProbeLogsUnavailable(t *testing.T) {
	p := NewSecurity(fakeLogTailer{err: errors.New("pods not found")}, "app=forecast-api", 10)
	r := p.Check(context.Background())

	assert.Equal(t, Failed, r.Verdict)
	assert.Equal(t, "logs unavailable", r.Observed)
}

func TestNewSecurityDefaultThreshold(t *testing.T) {
	p := NewSecurity(fakeLogTailer{}, "app=forecast-api", 0)
	assert.Equal(t, 10, p.threshold)
}
