package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks secrets and personal data in log attributes. Values of
// sensitive keys are masked outright; other string values are scanned for
// known PII patterns.
type Redactor struct {
	patterns []redactPattern
}

// Pattern is a named regular expression and its replacement.
type Pattern struct {
	Name        string
	Regex       string
	Replacement string
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Common PII pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternSSN         = "ssn"
	PatternCreditCard  = "credit_card"
	PatternEmail       = "email"
)

// DefaultPatterns are applied by every Redactor, in order.
var DefaultPatterns = []Pattern{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternAPIKey, `\b(sk|ghp|glpat)[-_][a-zA-Z0-9]{8,}`, "$1-***"},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*[^\s&]+`, "$1=***"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
	{PatternCreditCard, `\b(?:\d[ -]?){12,15}(\d{4})\b`, "****-****-****-$1"},
	{PatternEmail, `\b([a-zA-Z0-9])[a-zA-Z0-9._%+-]*@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})\b`, "$1***@$2"},
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization", "passphrase",
	"ssn", "credit_card", "card_number",
	"private_key",
}

// NewRedactor creates a Redactor with the default patterns followed by
// extra. Invalid extra patterns are skipped.
func NewRedactor(extra ...Pattern) *Redactor {
	r := &Redactor{}
	for _, p := range append(append([]Pattern(nil), DefaultPatterns...), extra...) {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r
}

// RedactString masks PII patterns in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks a single attribute. It is used as a slog
// ReplaceAttr hook.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value))
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

// IsSensitiveKey reports whether values under key are always masked.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskValue keeps a four character hint of long string values.
func maskValue(v slog.Value) string {
	if v.Kind() != slog.KindString {
		return "***"
	}
	s := v.String()
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}
