package shared

import (
	"net/http"
	"time"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// ParseDateIn reads a calendar date in loc; RFC3339 instants are converted.
func ParseDateIn(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02", value, loc)
}

// EvaluationTime reads the optional `at` query parameter used to replay a
// sweep or submission at a fixed instant; it defaults to now.
func EvaluationTime(r *http.Request, now time.Time) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return now, nil
	}
	return ParseDate(raw)
}
