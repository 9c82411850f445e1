// Package security detects and redacts credentials in function chunks before
// they are embedded or stored.
package security

import (
	"regexp"
	"sort"
	"strings"
)

// Secret is one credential found in a piece of source text.
type Secret struct {
	Type string `json:"type"`
	Line int    `json:"line"` // 1-based
	// Start and End are byte offsets of the sensitive span in the scanned
	// text. For assignments only the quoted value is covered.
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// rule matches a credential. When group is non-zero only that submatch is
// sensitive and replaced.
type rule struct {
	kind        string
	re          *regexp.Regexp
	group       int
	replacement string
}

// Token formats come first so they win over the generic assignment rules
// when both cover the same value.
var defaultRules = []rule{
	{kind: "private_key", re: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?(?:-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----|\z)`), replacement: "[REDACTED_PRIVATE_KEY]"},
	{kind: "aws_access_key", re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), replacement: "[REDACTED_AWS_KEY]"},
	{kind: "github_token", re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`), replacement: "[REDACTED_GITHUB_TOKEN]"},
	{kind: "slack_token", re: regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`), replacement: "[REDACTED_SLACK_TOKEN]"},
	{kind: "jwt_token", re: regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), replacement: "[REDACTED_JWT]"},
	{kind: "connection_string", re: regexp.MustCompile(`(?i)\b(?:mongodb(?:\+srv)?|postgres(?:ql)?|mysql|rediss?|amqps?)://[^:/@\s"']+:([^@\s"']+)@`), group: 1, replacement: "[REDACTED]"},
	// Assignments, keyword arguments and dict entries:
	// api_key = "...", connect(password="..."), {"secret": "..."}.
	{kind: "api_key", re: regexp.MustCompile(`(?i)(api[_-]?key|apikey|api_secret)["']?\s*[=:]\s*["']([a-zA-Z0-9_\-]{20,})["']`), group: 2, replacement: "[REDACTED]"},
	{kind: "password", re: regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token)["']?\s*[=:]\s*["']([^\s"']{8,})["']`), group: 2, replacement: "[REDACTED]"},
}

// Values containing one of these are examples or templates, not secrets.
var defaultPlaceholders = []string{
	"your-", "your_", "example", "placeholder", "xxx", "changeme", "dummy",
	"todo", "fixme", "<", ">", "{", "%s",
}

// SecretDetector finds and redacts credentials.
type SecretDetector struct {
	rules        []rule
	placeholders []string
}

// NewSecretDetector creates a detector with the built-in rules.
func NewSecretDetector() *SecretDetector {
	return &SecretDetector{rules: defaultRules, placeholders: defaultPlaceholders}
}

// Detect returns the non-overlapping secrets in content, ordered by offset.
func (d *SecretDetector) Detect(content string) []Secret {
	type hit struct {
		Secret
		rank int
	}

	var hits []hit
	for rank, r := range d.rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(content, -1) {
			start, end := loc[2*r.group], loc[2*r.group+1]
			if start < 0 || d.isPlaceholder(content[start:end]) {
				continue
			}
			hits = append(hits, hit{
				Secret: Secret{
					Type:        r.kind,
					Line:        strings.Count(content[:start], "\n") + 1,
					Start:       start,
					End:         end,
					Replacement: r.replacement,
				},
				rank: rank,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Start != hits[j].Start {
			return hits[i].Start < hits[j].Start
		}
		return hits[i].rank < hits[j].rank
	})

	var secrets []Secret
	end := -1
	for _, h := range hits {
		if h.Start < end {
			continue
		}
		secrets = append(secrets, h.Secret)
		end = h.End
	}
	return secrets
}

// Redact replaces each secret's span with its replacement. secrets must come
// from Detect on the same content. Newlines inside a span are kept so the
// redacted text has the same line count.
func (d *SecretDetector) Redact(content string, secrets []Secret) string {
	if len(secrets) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range secrets {
		if s.Start < pos || s.End > len(content) {
			continue
		}
		b.WriteString(content[pos:s.Start])
		b.WriteString(s.Replacement)
		b.WriteString(strings.Repeat("\n", strings.Count(content[s.Start:s.End], "\n")))
		pos = s.End
	}
	b.WriteString(content[pos:])
	return b.String()
}

// Scan detects and redacts secrets in one step.
func (d *SecretDetector) Scan(content string) (string, []Secret) {
	secrets := d.Detect(content)
	return d.Redact(content, secrets), secrets
}

// HasSecrets reports whether content holds any secret.
func (d *SecretDetector) HasSecrets(content string) bool {
	return len(d.Detect(content)) > 0
}

func (d *SecretDetector) isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range d.placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
