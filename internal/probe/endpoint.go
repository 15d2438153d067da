package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPProbe checks that an HTTP endpoint answers with a 2xx inside a latency
// SLA. It backs both the service-endpoint probe and the search-subsystem
// probe, which differ only in target and criticality.
type HTTPProbe struct {
	name     string
	url      string
	sla      time.Duration
	critical bool
	client   *http.Client
}

// NewHTTP builds an HTTP probe. A nil client gets a default with no
// transport-level timeout; the per-probe context bound applies either way.
func NewHTTP(name, url string, sla time.Duration, critical bool, client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProbe{name: name, url: url, sla: sla, critical: critical, client: client}
}

func (p *HTTPProbe) Name() string   { return p.name }
func (p *HTTPProbe) Critical() bool { return p.critical }

// Check performs one GET and grades the answer: transport error or non-2xx
// is failed, a slow 2xx is degraded, a fast 2xx is healthy.
func (p *HTTPProbe) Check(ctx context.Context) Result {
	threshold := fmt.Sprintf("<=%dms", p.sla.Milliseconds())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return NewResult(p, Failed, 0, "invalid target", threshold, err.Error())
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return NewResult(p, Failed, latency, "unreachable", threshold, err.Error())
	}
	defer resp.Body.Close()

	observed := fmt.Sprintf("%dms", latency.Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewResult(p, Failed, latency, fmt.Sprintf("HTTP %d", resp.StatusCode), threshold,
			fmt.Sprintf("%s answered HTTP %d", p.url, resp.StatusCode))
	}
	if latency > p.sla {
		return NewResult(p, Degraded, latency, observed, threshold, "latency over SLA")
	}
	return NewResult(p, Healthy, latency, observed, threshold, "")
}
