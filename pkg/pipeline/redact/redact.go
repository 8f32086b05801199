package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches header or key=value forms of the register auth key
	// ("X-Auth-Key: ...", "api_key=...", "auth-key: ...").
	authKeyKVRe = regexp.MustCompile(`(?i)\b(x-auth-key|api[_-]?key|auth[_-]?key)\b\s*[:=]\s*[^\s"',]+`)

	// Matches "Bearer <token>" in case a proxy or gateway token leaks into an error.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)
)

// Secrets removes obvious credential-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = authKeyKVRe.ReplaceAllString(out, "$1=<redacted>")
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	return strings.TrimSpace(out)
}
