package syncjob

import (
	"regexp"

	"github.com/dog-boarding/backend/internal/storage/models"
)

// Category groups sync error messages by likely cause.
type Category string

const (
	CategoryAuth      Category = "auth_error"
	CategoryNetwork   Category = "network_error"
	CategoryParse     Category = "parse_error"
	CategorySave      Category = "save_error"
	CategoryRateLimit Category = "rate_limit"
	CategoryTimeout   Category = "timeout"
	CategoryUnknown   Category = "unknown"
)

// categoryOrder fixes tie-breaking when two categories are equally common.
var categoryOrder = []Category{
	CategoryAuth, CategoryNetwork, CategoryRateLimit, CategoryTimeout,
	CategoryParse, CategorySave, CategoryUnknown,
}

// Patterns are checked in order; the first match wins.
var categoryPatterns = []struct {
	re       *regexp.Regexp
	category Category
}{
	{regexp.MustCompile(`(?i)auth|login|credential|unauthorized|401|403|session\s*expired|invalid\s*token`), CategoryAuth},
	{regexp.MustCompile(`(?i)fetch|network|econnrefused|enotfound|connection\s*refused|dns|socket|no such host`), CategoryNetwork},
	{regexp.MustCompile(`(?i)rate\s*limit|429|too\s*many\s*requests|throttl`), CategoryRateLimit},
	{regexp.MustCompile(`(?i)timeout|etimedout|timed\s*out|aborted|deadline exceeded`), CategoryTimeout},
	{regexp.MustCompile(`(?i)parse|json|unexpected\s*token|invalid\s*html|selector|element\s*not\s*found`), CategoryParse},
	{regexp.MustCompile(`(?i)supabase|database|duplicate\s*key|constraint|insert|update|pgrst|postgres|sqlite`), CategorySave},
}

// Categorize classifies one error message.
func Categorize(message string) Category {
	for _, p := range categoryPatterns {
		if p.re.MatchString(message) {
			return p.category
		}
	}
	return CategoryUnknown
}

// Description is a one-line explanation of the category for staff.
func (c Category) Description() string {
	switch c {
	case CategoryAuth:
		return "Authentication failed - check credentials"
	case CategoryNetwork:
		return "Network error - check internet connection"
	case CategoryParse:
		return "Failed to parse data - site may have changed"
	case CategorySave:
		return "Failed to save to database"
	case CategoryRateLimit:
		return "Rate limited - too many requests"
	case CategoryTimeout:
		return "Request timed out"
	default:
		return "Unknown error occurred"
	}
}

// Recoverable reports whether retrying later is likely to help.
func (c Category) Recoverable() bool {
	return c == CategoryNetwork || c == CategoryRateLimit || c == CategoryTimeout
}

// RecommendedAction tells staff what to do about errors of this category.
func (c Category) RecommendedAction() string {
	switch c {
	case CategoryAuth:
		return "Check your external site credentials in settings"
	case CategoryNetwork:
		return "Check your internet connection and try again"
	case CategoryParse:
		return "The external site may have changed. Contact support."
	case CategorySave:
		return "Database error. Try again or contact support."
	case CategoryRateLimit:
		return "Too many requests. Wait a few minutes and try again."
	case CategoryTimeout:
		return "Request timed out. Check connection and try again."
	default:
		return "An unexpected error occurred. Try again or contact support."
	}
}

// Analysis summarizes the errors of one run.
type Analysis struct {
	Stats             map[Category]int `json:"stats"`
	Dominant          Category         `json:"dominantCategory"`
	Description       string           `json:"description"`
	TotalErrors       int              `json:"totalErrors"`
	Recoverable       bool             `json:"isRecoverable"`
	RecommendedAction string           `json:"recommendedAction"`
}

// AnalyzeErrors counts errors per category and picks the most common one.
func AnalyzeErrors(errs []models.SyncError) Analysis {
	stats := make(map[Category]int)
	for _, e := range errs {
		stats[Categorize(e.Error)]++
	}

	dominant, max := CategoryUnknown, 0
	for _, c := range categoryOrder {
		if stats[c] > max {
			dominant, max = c, stats[c]
		}
	}

	return Analysis{
		Stats:             stats,
		Dominant:          dominant,
		Description:       dominant.Description(),
		TotalErrors:       len(errs),
		Recoverable:       dominant.Recoverable(),
		RecommendedAction: dominant.RecommendedAction(),
	}
}
