// Package redact masks credentials in commands, URLs and tool arguments
// before they reach the audit log.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Rules with a capture group keep the key and mask only the value.
var rules = []rule{
	// AWS
	{regexp.MustCompile(`(?i)((?:aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*)['"]?[A-Za-z0-9/+=]{16,}['"]?`), "${1}" + Placeholder},
	{regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), Placeholder},

	// GitHub
	{regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`), Placeholder},
	{regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,}\b`), Placeholder},

	// Cloud and SaaS tokens
	{regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z-]{10,}`), Placeholder},
	{regexp.MustCompile(`\b[sr]k_live_[0-9a-zA-Z]{24,}\b`), Placeholder},
	{regexp.MustCompile(`\bsk-(?:ant-|proj-)?[A-Za-z0-9_-]{20,}`), Placeholder},
	{regexp.MustCompile(`\bnpm_[A-Za-z0-9]{36}\b`), Placeholder},
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`), Placeholder},

	// Private key blocks, header included
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----[\s\S]*?(?:-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----|$)`), Placeholder},

	// Authorization headers
	{regexp.MustCompile(`(?i)(\bbearer\s+)[A-Za-z0-9._~+/-]{16,}=*`), "${1}" + Placeholder},
	{regexp.MustCompile(`(?i)(authorization:\s*basic\s+)[A-Za-z0-9+/]+=*`), "${1}" + Placeholder},

	// Credentials embedded in URLs
	{regexp.MustCompile(`(\b[a-z][a-z0-9+.-]*://[^:/\s@]+:)[^@\s/]+@`), "${1}" + Placeholder + "@"},
	{regexp.MustCompile(`(?i)([?&](?:token|access_token|api_key|apikey|key|sig|signature|secret|password|auth)=)[^&#\s]+`), "${1}" + Placeholder},

	// key=value assignments in commands and env files
	{regexp.MustCompile(`(?i)(\b[a-z_]*(?:api_?key|secret(?:_key)?|access_token|auth_token|token|password|passwd|pwd)\s*[=:]\s*)['"]?[^\s'"&]{8,}['"]?`), "${1}" + Placeholder},
}

// String masks every credential found in s.
func String(s string) string {
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "authorization", "credential", "private_key",
}

// sensitiveKey reports whether a map key names a credential.
func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Map returns a redacted deep copy of m. Values under credential-like keys
// are replaced outright; other strings go through String.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKey(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		return Map(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = value(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = String(e)
		}
		return out
	default:
		return v
	}
}
