package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks personal data in log attributes. Values under sensitive
// keys are masked entirely; other string values are scanned for patterns.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement func(string) string
}

// Pattern names.
const (
	PatternEmail       = "email"
	PatternIPv4        = "ipv4"
	PatternBearerToken = "bearer_token"
)

var sensitiveKeys = []string{
	"student_id", "email", "ip_address", "user_agent",
	"password", "secret", "token", "authorization",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				name:        PatternEmail,
				regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
				replacement: RedactEmail,
			},
			{
				name:        PatternIPv4,
				regex:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
				replacement: RedactIPv4,
			},
			{
				name:        PatternBearerToken,
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: func(string) string { return "Bearer ***" },
			},
		},
	}
}

// RedactString masks every pattern match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replacement)
	}
	return value
}

// RedactAttr returns a copy of a with personal data masked. Groups are
// processed recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	default:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a two-character hint of short identifiers.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:2] + "***"
}

// RedactEmail redacts an email address partially (first char and domain).
func RedactEmail(email string) string {
	username, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if username == "" {
		return "***@" + domain
	}
	return username[:1] + "***@" + domain
}

// RedactIPv4 redacts an IPv4 address, keeping only the first octet.
func RedactIPv4(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return parts[0] + ".*.*.*"
}
