// Package redact scrubs secrets from text before it leaves the controller:
// alert payloads, audit entries, and rendered reports all pass through a
// Redactor. The forecast service's config map carries upstream API keys,
// and webhook URLs embed delivery tokens; neither belongs in an artifact.
package redact

import (
	"sort"
	"strings"
)

// Config controls what the Redactor redacts.
type Config struct {
	Enabled        bool     `yaml:"enabled"`
	RedactIPs      string   `yaml:"redact_ips"` // "private_only" | "all" | "none"
	CustomPatterns []string `yaml:"custom_patterns"`
	Placeholder    string   `yaml:"placeholder"`
}

// DefaultConfig returns a Config with redaction enabled. Output leaves the
// machine, so opting out is the explicit choice.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RedactIPs:   "private_only",
		Placeholder: "[REDACTED]",
	}
}

// Redactor applies a sorted set of redaction rules to strings.
type Redactor struct {
	rules       []rule
	placeholder string
}

// New compiles a Redactor from the given config. If cfg.Enabled is false,
// the returned Redactor is a passthrough.
func New(cfg Config) *Redactor {
	if !cfg.Enabled {
		return &Redactor{placeholder: cfg.Placeholder}
	}

	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "[REDACTED]"
	}

	var rules []rule
	rules = append(rules, builtinRules(placeholder)...)
	rules = append(rules, ipRules(cfg.RedactIPs)...)
	rules = append(rules, customRules(cfg.CustomPatterns)...)

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].priority < rules[j].priority
	})

	return &Redactor{
		rules:       rules,
		placeholder: placeholder,
	}
}

// Redact applies all compiled rules sequentially to the input string.
func (r *Redactor) Redact(input string) string {
	if len(r.rules) == 0 {
		return input
	}

	result := input
	for _, rule := range r.rules {
		if rule.replace != nil {
			result = rule.pattern.ReplaceAllStringFunc(result, rule.replace)
		} else {
			result = rule.pattern.ReplaceAllString(result, r.placeholder)
		}
	}
	return result
}

// RedactMap redacts every value of a string map, returning a new map. Keys
// are preserved so config snapshots keep their shape in audit output. Each
// value is matched as "key=value" so the structured-secret rule can see the
// key name.
func (r *Redactor) RedactMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		full := r.Redact(k + "=" + v)
		if rest, ok := strings.CutPrefix(full, k+"="); ok {
			out[k] = rest
		} else {
			out[k] = full
		}
	}
	return out
}
