package archivetime

import (
	"fmt"
	"time"
)

// archives timestamp snapshots in UTC, a 14-digit string of the
// form YYYYMMDDhhmmss. date bounds passed to lookup endpoints use
// the 8-digit prefix YYYYMMDD.
const (
	TimestampLayout = "20060102150405"
	DateLayout      = "20060102"
)

func ParseTimestamp(raw string) (time.Time, error) {
	if len(raw) != len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q is not 14 digits", raw)
	}
	t, err := time.ParseInLocation(TimestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func FormatTimestamp(t time.Time) string {
	return t.In(time.UTC).Format(TimestampLayout)
}

// ParseDate accepts an 8-digit YYYYMMDD bound.
func ParseDate(raw string) (time.Time, error) {
	if len(raw) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("date %q is not 8 digits", raw)
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.In(time.UTC).Format(DateLayout)
}
