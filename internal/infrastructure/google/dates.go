package google

import (
	"regexp"
	"strings"
	"time"

	"DailyBriefing/internal/apperr"
)

var (
	isoDateExpr = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	brDateExpr  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// isoLayouts are the full ISO-8601 forms accepted as-is.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// NormalizeDate turns a full ISO-8601 timestamp, a bare YYYY-MM-DD or a DD/MM/YYYY date
// into an instant. Bare dates mean midnight UTC.
func NormalizeDate(value string) (time.Time, error) {
	fixed := strings.TrimSpace(strings.Replace(value, "GMT", "", 1))
	if fixed == "" {
		return time.Time{}, apperr.Validation("invalid_date", "empty date")
	}

	switch {
	case isoDateExpr.MatchString(fixed):
		if t, err := time.ParseInLocation("2006-01-02", fixed, time.UTC); err == nil {
			return t, nil
		}
	case brDateExpr.MatchString(fixed):
		if t, err := time.ParseInLocation("02/01/2006", fixed, time.UTC); err == nil {
			return t, nil
		}
	default:
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, fixed, time.UTC); err == nil {
				return t, nil
			}
		}
	}

	return time.Time{}, apperr.Validation("invalid_date", "cannot normalize date %q", value)
}

// FormatInstant renders an instant the way the Calendar API expects it.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
