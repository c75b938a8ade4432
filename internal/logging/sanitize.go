package logging

import (
	"regexp"
	"unicode/utf8"
)

// MaxErrorLength is the longest message, in characters, Sanitize returns
// before the ellipsis.
const MaxErrorLength = 200

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s]+`)
	passwordPattern = regexp.MustCompile(`(?i)password[=:]\s*\S+`)
	usernamePattern = regexp.MustCompile(`(?i)username[=:]\s*\S+`)
	emailPattern    = regexp.MustCompile(`(?i)email[=:]\s*\S+`)
)

// Sanitize strips URLs and credential-like key/value pairs from a free-text
// error message so it can be stored and returned to clients.
func Sanitize(message string) string {
	if message == "" {
		return "Unknown error"
	}

	s := urlPattern.ReplaceAllString(message, "[URL]")
	s = passwordPattern.ReplaceAllString(s, "password=[REDACTED]")
	s = usernamePattern.ReplaceAllString(s, "username=[REDACTED]")
	s = emailPattern.ReplaceAllString(s, "email=[REDACTED]")

	if utf8.RuneCountInString(s) > MaxErrorLength {
		s = truncate(s, MaxErrorLength) + "..."
	}
	return s
}

// SanitizeError is Sanitize for an error value; nil yields "Unknown error".
func SanitizeError(err error) string {
	if err == nil {
		return Sanitize("")
	}
	return Sanitize(err.Error())
}

// truncate cuts s to its first n characters.
func truncate(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
