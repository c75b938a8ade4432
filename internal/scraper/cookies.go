package scraper

import (
	"strings"
)

// MergeCookies folds Set-Cookie header values into a single Cookie request
// header. Each input may itself hold several cookies joined by commas, as
// some proxies and fetch APIs deliver them. Attributes are dropped, a later
// value for the same name replaces an earlier one, and names keep the order
// in which they were first seen.
func MergeCookies(setCookies ...string) string {
	var order []string
	values := make(map[string]string)

	for _, header := range setCookies {
		for _, part := range splitSetCookie(header) {
			pair, _, _ := strings.Cut(part, ";")
			name, value, ok := strings.Cut(pair, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				continue
			}
			if _, seen := values[name]; !seen {
				order = append(order, name)
			}
			values[name] = strings.TrimSpace(value)
		}
	}

	pairs := make([]string, 0, len(order))
	for _, name := range order {
		pairs = append(pairs, name+"="+values[name])
	}
	return strings.Join(pairs, "; ")
}

// splitSetCookie splits on commas that start a new name=value pair, so the
// comma inside "Expires=Wed, 21 Oct 2026 07:28:00 GMT" is kept.
func splitSetCookie(header string) []string {
	fragments := strings.Split(header, ",")
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		head, _, _ := strings.Cut(f, ";")
		if len(parts) > 0 && !strings.Contains(head, "=") {
			parts[len(parts)-1] += "," + f
			continue
		}
		parts = append(parts, f)
	}
	return parts
}
