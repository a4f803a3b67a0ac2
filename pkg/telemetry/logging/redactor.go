package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor scrubs credential material from log attributes. Two strategies
// are combined: attributes whose key names a secret are replaced wholesale,
// and string values are scanned for secret-shaped substrings (API keys,
// bearer tokens, service account JSON).
type Redactor struct {
	patterns []redactPattern
}

// redactPattern pairs a compiled regex with its replacement.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

const redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values are always replaced,
// compared case-insensitively.
var sensitiveKeys = map[string]struct{}{
	"apikey":          {},
	"api_key":         {},
	"authorization":   {},
	"credential":      {},
	"credentials":     {},
	"password":        {},
	"secret":          {},
	"serviceaccount":  {},
	"service_account": {},
	"token":           {},
	"access_token":    {},
}

// NewRedactor creates a redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	compile := func(expr, replacement string) redactPattern {
		return redactPattern{regex: regexp.MustCompile(expr), replacement: replacement}
	}
	return &Redactor{
		patterns: []redactPattern{
			// Provider API keys (sk-..., and explicit api key fields).
			compile(`sk-[a-zA-Z0-9_-]{8,}`, redacted),
			compile(`(?i)(api[-_]?key["':=\s]+)[a-zA-Z0-9_-]+`, "${1}"+redacted),
			// Bearer tokens in header dumps.
			compile(`(?i)(bearer\s+)[a-zA-Z0-9\-._~+/]+=*`, "${1}"+redacted),
			// Service account private keys.
			compile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`, redacted),
			compile(`(?i)("private_key"\s*:\s*")[^"]+`, "${1}"+redacted),
		},
	}
}

// RedactAttr scrubs a single log attribute. Group attributes are walked
// recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]any, 0, len(attrs))
		for _, ga := range attrs {
			out = append(out, r.RedactAttr(ga))
		}
		return slog.Group(a.Key, out...)
	default:
		return a
	}
}

// RedactString scrubs secret-shaped substrings from a string.
func (r *Redactor) RedactString(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
