package redact

import "regexp"

// rule represents a single redaction rule with a compiled regex pattern.
type rule struct {
	name     string
	priority int
	pattern  *regexp.Regexp
	replace  func(match string) string // nil means use Redactor.placeholder
}

// Compiled patterns, allocated once at package init time.
var (
	// Structured secrets: key=value or key: value where the key names a
	// password, secret, token, or API key. The forecast config map carries
	// its upstream model API key in this form.
	structuredSecretRe = regexp.MustCompile(
		`(?i)([\w]*(?:password|secret|token|api[_-]?key|auth[_-]?token))\s*([=:])\s*(\S+)`,
	)

	// Bearer tokens in Authorization headers (cluster API, service calls).
	bearerTokenRe = regexp.MustCompile(
		`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
	)

	// Webhook delivery URLs embed routing tokens in the path. Keep the
	// host, drop the path.
	webhookPathRe = regexp.MustCompile(
		`(https?://hooks\.[\w.-]+)/\S+`,
	)

	// AWS access key IDs (backup tooling credentials showing up in logs).
	awsAccessKeyRe = regexp.MustCompile(
		`AKIA[A-Z0-9]{16}`,
	)

	// Private IPv4 ranges: 10.x.x.x, 172.16-31.x.x, 192.168.x.x
	privateIPRe = regexp.MustCompile(
		`\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3})\b`,
	)

	// Any IPv4 address.
	allIPRe = regexp.MustCompile(
		`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
	)
)

// builtinRules returns the built-in secret-detection rules. Priority 10-40
// so they run before IP rules (80) and custom rules (90).
func builtinRules(placeholder string) []rule {
	return []rule{
		{
			name:     "structured_secret",
			priority: 10,
			pattern:  structuredSecretRe,
			replace: func(match string) string {
				// Preserve the key name and separator, redact only the value.
				loc := structuredSecretRe.FindStringSubmatchIndex(match)
				if loc == nil {
					return placeholder
				}
				key := match[loc[2]:loc[3]]
				sep := match[loc[4]:loc[5]]
				spacing := match[loc[5]:loc[6]]
				return key + sep + spacing + placeholder
			},
		},
		{
			name:     "bearer_token",
			priority: 20,
			pattern:  bearerTokenRe,
		},
		{
			name:     "webhook_path",
			priority: 30,
			pattern:  webhookPathRe,
			replace: func(match string) string {
				loc := webhookPathRe.FindStringSubmatchIndex(match)
				if loc == nil {
					return placeholder
				}
				host := match[loc[2]:loc[3]]
				return host + "/" + placeholder
			},
		},
		{
			name:     "aws_access_key",
			priority: 40,
			pattern:  awsAccessKeyRe,
		},
	}
}

// ipRules returns rules for IP address redaction based on the mode.
//   - "private_only": redact RFC 1918 private addresses only
//   - "all":          redact any IPv4 address
//   - "none":         no IP redaction rules
func ipRules(mode string) []rule {
	switch mode {
	case "private_only":
		return []rule{{name: "private_ip", priority: 80, pattern: privateIPRe}}
	case "all":
		return []rule{{name: "all_ip", priority: 80, pattern: allIPRe}}
	default: // "none" or unrecognized
		return nil
	}
}

// customRules compiles user-supplied regex patterns into rules.
// Invalid patterns are silently skipped.
func customRules(patterns []string) []rule {
	var rules []rule
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		rules = append(rules, rule{
			name:     "custom_" + p,
			priority: 90 + i,
			pattern:  re,
		})
	}
	return rules
}
