package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

// SensitiveHeaders are the lower-cased header names whose values never reach
// the log output.
var SensitiveHeaders = []string{
	"cookie",
	"set-cookie",
	"authorization",
	"proxy-authorization",
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor removes credentials from log attributes.
type Redactor struct {
	keys     map[string]bool
	patterns []*redactPattern
}

// NewRedactor creates a Redactor for SensitiveHeaders plus extraKeys.
func NewRedactor(extraKeys ...string) *Redactor {
	r := &Redactor{keys: make(map[string]bool)}
	for _, k := range SensitiveHeaders {
		r.keys[k] = true
	}
	for _, k := range extraKeys {
		r.keys[strings.ToLower(k)] = true
	}

	r.patterns = []*redactPattern{
		{
			name:        "bearer_token",
			regex:       regexp.MustCompile(`(?i)(Bearer|Basic)\s+[a-zA-Z0-9\-._~+/]+=*`),
			replacement: "$1 ***",
		},
		{
			name:        "password",
			regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)=[^&\s]+`),
			replacement: "$1=***",
		},
	}
	return r
}

// IsSensitive reports whether key names a sensitive header.
func (r *Redactor) IsSensitive(key string) bool {
	return r.keys[strings.ToLower(key)]
}

// RedactString masks credentials embedded in a free-form string.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactHeaders returns a copy of headers with sensitive values replaced.
func (r *Redactor) RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if r.IsSensitive(name) {
			out[name] = Redacted
		} else {
			out[name] = value
		}
	}
	return out
}

// RedactAttr redacts a single attribute, descending into groups. LogValuer
// values are resolved first so that header sets rendered as groups are
// covered.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if r.IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if m, ok := a.Value.Any().(map[string]string); ok {
			return slog.Any(a.Key, r.RedactHeaders(m))
		}
	}
	return a
}
