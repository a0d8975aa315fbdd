package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const Redacted = "[REDACTED]"

// DefaultRedactPatterns are the key names whose values are hidden.
var DefaultRedactPatterns = []string{"password", "secret", "token", "api_key", "private_key"}

// Redactor masks values of sensitive key=value or key: value pairs.
// Matching on key names is case-insensitive and substring based, so
// "token" also covers GITHUB_TOKEN.
type Redactor struct {
	re *regexp.Regexp
}

func NewRedactor(patterns []string) (*Redactor, error) {
	if len(patterns) == 0 {
		return &Redactor{}, nil
	}
	quoted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty redact pattern")
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	expr := `(?i)([\w.-]*(?:` + strings.Join(quoted, "|") + `)[\w.-]*["']?\s*[=:]\s*)("[^"]*"|'[^']*'|\S+)`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile redact patterns: %w", err)
	}
	return &Redactor{re: re}, nil
}

// Redact returns s with every sensitive value replaced by [REDACTED].
func (r *Redactor) Redact(s string) string {
	if r == nil || r.re == nil || s == "" {
		return s
	}
	return r.re.ReplaceAllString(s, "${1}"+Redacted)
}

// Preview redacts s and truncates it to at most n runes.
func (r *Redactor) Preview(s string, n int) string {
	s = r.Redact(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
