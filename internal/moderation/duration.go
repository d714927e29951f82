package moderation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration, use formats like 30m, 1h, 1d or 2w")

var durationPattern = regexp.MustCompile(`^(\d+)([smhdw])$`)

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// maxDuration keeps value*unit inside time.Duration.
const maxDuration = 10 * 365 * 24 * time.Hour

// ParseDuration accepts a positive integer followed by one of s, m, h, d, w.
func ParseDuration(raw string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, ErrInvalidDuration
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || value <= 0 {
		return 0, ErrInvalidDuration
	}
	unit := durationUnits[match[2]]
	if value > int64(maxDuration/unit) {
		return 0, fmt.Errorf("%w: longer than %s", ErrInvalidDuration, FormatDuration(maxDuration))
	}
	return time.Duration(value) * unit, nil
}

// FormatDuration renders d in its largest whole unit, e.g. "3 hours".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 60 {
		return plural(seconds, "second")
	}
	minutes := seconds / 60
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	hours := minutes / 60
	if hours < 24 {
		return plural(hours, "hour")
	}
	days := hours / 24
	if days < 7 {
		return plural(days, "day")
	}
	return plural(days/7, "week")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
