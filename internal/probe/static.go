package probe

import "context"

// StaticProbe always reports the same verdict. It stands in for probes
// whose backing client is unavailable, e.g. the cluster probes when no
// kubeconfig is reachable, so the battery keeps its shape and the
// snapshot says why a slot was skipped.
type StaticProbe struct {
	name     string
	verdict  Verdict
	critical bool
	detail   string
}

// NewStatic builds a fixed-verdict probe.
func NewStatic(name string, v Verdict, critical bool, detail string) *StaticProbe {
	return &StaticProbe{name: name, verdict: v, critical: critical, detail: detail}
}

// NewSkipped builds a skipped placeholder for a probe slot.
func NewSkipped(name, detail string) *StaticProbe {
	return &StaticProbe{name: name, verdict: Skipped, detail: detail}
}

func (p *StaticProbe) Name() string   { return p.name }
func (p *StaticProbe) Critical() bool { return p.critical }

func (p *StaticProbe) Check(_ context.Context) Result {
	return NewResult(p, p.verdict, 0, "static", "", p.detail)
}
