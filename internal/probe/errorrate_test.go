package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountErrorLines(t *testing.T) {
	logs := strings.Join([]string{
		"2026-03-14T09:30:00Z INFO request served",
		"",
		"2026-03-14T09:30:01Z ERROR upstream model timed out",
		"2026-03-14T09:30:02Z INFO request served",
		"2026-03-14T09:30:03Z error reading cache shard",
	}, "\n")
	total, errs := CountErrorLines(logs)
	assert.Equal(t, 4, total, "blank lines must not count")
	assert.Equal(t, 2, errs)
}

func TestErrorRateProbeQuiet(t *testing.T) {
	logs := strings.Repeat("INFO request served\n", 40)
	p := NewErrorRate(fakeLogTailer{logs: logs}, "app=forecast-api", 5)
	r := p.Check(context.Background())

	assert.Equal(t, Healthy, r.Verdict)
	assert.Equal(t, "error_rate", r.Name)
	assert.False(t, r.Critical)
}

func TestErrorRateProbeOverThresholdDegraded(t *testing.T) {
	logs := strings.Repeat("INFO request served\n", 46) + strings.Repeat("ERROR model timeout\n", 4)
	p := NewErrorRate(fakeLogTailer{logs: logs}, "app=forecast-api", 5)
	r := p.Check(context.Background())

	assert.Equal(t, Degraded, r.Verdict, "8%% of 50 lines is over a 5%% threshold")
}

func TestErrorRateProbeFarOverThresholdFailed(t *testing.T) {
	logs := strings.Repeat("INFO request served\n", 8) + strings.Repeat("ERROR model timeout\n", 2)
	p := NewErrorRate(fakeLogTailer{logs: logs}, "app=forecast-api", 5)
	r := p.Check(context.Background())

	assert.Equal(t, Failed, r.Verdict, "20%% is double a 5%% threshold")
}

func TestErrorRateProbeNoOutputSkipped(t *testing.T) {
	p := NewErrorRate(fakeLogTailer{logs: "   \n\n"}, "app=forecast-api", 5)
	r := p.Check(context.Background())

	assert.Equal(t, Skipped, r.Verdict)
}

func TestErrorRateProbeLogsUnavailable(t *testing.T) {
	p := NewErrorRate(fakeLogTailer{err: errors.New("pods not found")}, "app=forecast-api", 5)
	r := p.Check(context.Background())

	assert.Equal(t, Failed, r.Verdict)
	assert.Equal(t, "logs unavailable", r.Observed)
}
