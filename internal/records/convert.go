package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// toInt64 converts driver aggregate values. SUM over no rows yields NULL,
// which counts as zero.
func toInt64(val any) (int64, error) {
	switch t := val.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case float64:
		return int64(math.Round(t)), nil
	case float32:
		return int64(math.Round(float64(t))), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q as integer: %w", t, err)
		}
		return int64(math.Round(f)), nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", val)
	}
}

// toTime converts a timestamp column value. Values that carry no zone are
// read as wall-clock time in loc; drivers hand those over as UTC.
func toTime(val any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch t := val.(type) {
	case time.Time:
		if t.Location() == time.UTC && loc != time.UTC {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range zonedLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp %q", t)
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", val)
	}
}

func toString(val any) string {
	switch t := val.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percent returns 100*part/whole rounded to one decimal, or 0 for an empty whole.
func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}
