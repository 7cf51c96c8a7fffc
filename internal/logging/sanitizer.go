package logging

import (
	"regexp"
	"strings"
)

// Redacted replaces sensitive content.
const Redacted = "[REDACTED]"

// Sanitizer redacts secrets from log messages and report metadata.
type Sanitizer struct {
	patterns      []*regexp.Regexp
	sensitiveKeys []string
	redacted      string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		sensitiveKeys: []string{
			"TOKEN", "KEY", "SECRET", "PASSWORD", "PASSWD",
			"CREDENTIAL", "AUTH", "PRIVATE", "COOKIE",
		},
		redacted: Redacted,
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI / Anthropic style keys
		`sk-(?:ant-)?[A-Za-z0-9-]{20,}`,
		// Google API
		`AIza[a-zA-Z0-9_-]{35}`,
		// GitHub tokens
		`gh[pousr]_[A-Za-z0-9]{36}`,
		// AWS access key id
		`AKIA[0-9A-Z]{16}`,
		// Slack
		`xox[baprs]-[0-9a-zA-Z-]{10,}`,
		// Bearer tokens
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// Credentials embedded in URLs
		`(?i)[a-z][a-z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`,
		// key=value style secrets
		`(?i)(?:api[_-]?key|secret|token)["'\s:=]+[a-zA-Z0-9/+_-]{20,}`,
		`(?i)password["'\s:=]+[^\s"']{8,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// IsSensitiveKey reports whether a variable or field name looks like it
// holds a secret.
func (s *Sanitizer) IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, k := range s.sensitiveKeys {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// SanitizeStrings returns a copy of m with sensitive keys blanked and every
// other value passed through Sanitize.
func (s *Sanitizer) SanitizeStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s.IsSensitiveKey(k) {
			out[k] = s.redacted
			continue
		}
		out[k] = s.Sanitize(v)
	}
	return out
}

// RedactEnviron converts KEY=VALUE pairs into a map, redacting values of
// sensitive keys.
func (s *Sanitizer) RedactEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return s.SanitizeStrings(env)
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}
