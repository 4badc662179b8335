package models

import (
	"strings"
	"time"
)

// TimeLayout is the on-disk timestamp format of every document.
const TimeLayout = "2006-01-02 15:04:05"

// acceptedLayouts lists what ParseTimestamp understands, most common first.
var acceptedLayouts = []string{
	TimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp parses a stored timestamp in loc. The second return value is
// false when value matches none of the accepted layouts.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t in the on-disk format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimeLayout)
}
