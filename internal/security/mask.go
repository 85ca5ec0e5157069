// Package security scrubs credentials from log output. Everything the server
// logs about upstream requests passes through here first.
package security

import (
	"regexp"
	"strings"
)

// sensitiveKeyFragments flag a field or query parameter as secret-bearing
// when its lowercased name contains one of them.
var sensitiveKeyFragments = []string{
	"password", "passwd", "pwd",
	"secret", "token", "key", "apikey", "api_key",
	"authorization", "auth", "credential",
	"private", "ssh", "certificate", "cert",
}

// maskedHeaderNames are HTTP headers whose values are always redacted.
var maskedHeaderNames = map[string]bool{ // pragma: allowlist secret
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"apikey":        true, // pragma: allowlist secret
	"x-auth-token":  true,
	"cookie":        true,
	"set-cookie":    true,
	"x-csrf-token":  true,
}

// sensitivePatterns match key=value shapes carrying credentials inside free
// text (error strings, config dumps).
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)[=:]["']?([a-zA-Z0-9_-]{20,})["']?`),
	regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{20,})`),
	// Opaque 44-char keys as issued by common cloud IAM services
	regexp.MustCompile(`(?i)([a-zA-Z0-9]{44})`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)[=:]["']?([^"'\s&]+)["']?`),
	regexp.MustCompile(`(?i)(secret|token)[=:]["']?([a-zA-Z0-9_-]{16,})["']?`),
}

const redacted = "***REDACTED***"

// MaskAPIKey masks an API key, showing only the first 4 and last 4 characters
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}

// MaskBearerToken masks a bearer token for safe logging
func MaskBearerToken(token string) string {
	if len(token) <= 10 {
		return redacted
	}
	return token[:6] + "..." + token[len(token)-4:]
}

// MaskSensitiveHeaders returns a loggable copy of HTTP headers with
// credential-bearing values redacted.
func MaskSensitiveHeaders(headers map[string][]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		if maskedHeaderNames[strings.ToLower(key)] {
			masked[key] = redacted
			continue
		}
		if len(values) > 0 {
			masked[key] = values[0]
			if len(values) > 1 {
				masked[key] += "..."
			}
		}
	}
	return masked
}

// MaskSensitiveData redacts credential values in free text, keeping the key
// names so the log line stays diagnosable.
func MaskSensitiveData(data string) string {
	result := data
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + redacted
			}
			return redacted
		})
	}
	return result
}

// MaskURL redacts the values of credential-bearing query parameters.
func MaskURL(rawURL string) string {
	result := rawURL
	for _, fragment := range sensitiveKeyFragments {
		pattern := regexp.MustCompile(`(?i)([^&?\s]*` + regexp.QuoteMeta(fragment) + `[^&?\s=]*=)([^&\s]+)`)
		result = pattern.ReplaceAllString(result, "${1}"+redacted)
	}
	return result
}

// IsSensitiveField reports whether a field name indicates secret-bearing data.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// SanitizeError removes sensitive data from error messages
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return MaskSensitiveData(err.Error())
}
