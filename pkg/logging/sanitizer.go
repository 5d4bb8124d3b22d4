package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// Subscriber identifiers: 7+ consecutive digits, optionally preceded
	// by a plus. Anything shorter is a shortcode and not personal data.
	subscriberPattern = regexp.MustCompile(`\+?\d{7,}`)
)

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// MaskSubscriber masks a phone-number-like identifier down to its last four
// digits. CDR identifiers are personal data and must never be logged whole.
func MaskSubscriber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

// SanitizeRow masks every subscriber-length digit run in a raw row or error
// message before it reaches log output.
func SanitizeRow(s string) string {
	return subscriberPattern.ReplaceAllStringFunc(s, MaskSubscriber)
}
