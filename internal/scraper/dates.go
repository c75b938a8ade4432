package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	monthPattern = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)`)
	dayPattern   = regexp.MustCompile(`\b(\d{1,2})\b`)
	yearPattern  = regexp.MustCompile(`\b(20\d{2})\b`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Hours assigned to a parsed date, since the site's free text rarely has a
// usable clock time.
const (
	pmHour      = 17
	amHour      = 10
	defaultHour = 12
)

// ParseCheckDate reads a free-text check-in or check-out value such as
// "Friday, March 14, 2025 at 5:00 PM". It needs a full month name, a one- or
// two-digit day and a 20xx year; the first of each is used. The time of day
// is 17:00 when "pm" appears, 10:00 when "am" does, noon otherwise, all UTC.
// It returns nil when the text cannot be read.
func ParseCheckDate(text string) *time.Time {
	if text == "" {
		return nil
	}

	month := monthPattern.FindString(text)
	day := dayPattern.FindStringSubmatch(text)
	year := yearPattern.FindStringSubmatch(text)
	if month == "" || day == nil || year == nil {
		return nil
	}

	d, err := strconv.Atoi(day[1])
	if err != nil || d < 1 || d > 31 {
		return nil
	}
	y, err := strconv.Atoi(year[1])
	if err != nil {
		return nil
	}

	lower := strings.ToLower(text)
	hour := defaultHour
	switch {
	case strings.Contains(lower, "pm"):
		hour = pmHour
	case strings.Contains(lower, "am"):
		hour = amHour
	}

	t := time.Date(y, months[strings.ToLower(month)], d, hour, 0, 0, 0, time.UTC)
	return &t
}
