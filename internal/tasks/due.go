package tasks

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const EmojiDue = "\U0001F4C5"

// DueInfo is a parsed due instant. HasTime is true only when a time of day
// was given explicitly; sub-day reminders require it.
type DueInfo struct {
	At      time.Time
	HasTime bool
}

func (d DueInfo) IsZero() bool { return d.At.IsZero() }

var (
	dateTimeRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})[T\s](\d{2}):(\d{2})(?::(\d{2}))?\b`)
	dateOnlyRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	looseTimeRe     = regexp.MustCompile(`[T\s]\d{2}:\d{2}`)
	emojiDateTimeRe = regexp.MustCompile(EmojiDue + `\s*(\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}(?::\d{2})?)`)
	emojiDateRe     = regexp.MustCompile(EmojiDue + `\s*(\d{4}-\d{2}-\d{2})`)
	keyDateTimeRe   = regexp.MustCompile(`(?i)\bdue[:\s]*([0-9]{4}-[0-9]{2}-[0-9]{2}[T\s][0-9]{2}:[0-9]{2}(?::[0-9]{2})?)\b`)
	keyDateRe       = regexp.MustCompile(`(?i)\bdue[:\s]*([0-9]{4}-[0-9]{2}-[0-9]{2})\b`)
)

var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// ParseDate parses "YYYY-MM-DD HH:MM[:SS]" in local time, a bare
// "YYYY-MM-DD" as UTC midnight, and a few common absolute layouts.
func ParseDate(value string) (DueInfo, bool) {
	if m := dateTimeRe.FindStringSubmatch(value); m != nil {
		sec := 0
		if m[6] != "" {
			sec = atoi(m[6])
		}
		at := time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), atoi(m[4]), atoi(m[5]), sec, 0, time.Local)
		return DueInfo{At: at, HasTime: true}, true
	}
	if m := dateOnlyRe.FindStringSubmatch(value); m != nil {
		at := time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), 0, 0, 0, 0, time.UTC)
		return DueInfo{At: at}, true
	}
	value = strings.TrimSpace(value)
	for _, layout := range fallbackLayouts {
		if at, err := time.Parse(layout, value); err == nil {
			return DueInfo{At: at, HasTime: looseTimeRe.MatchString(value)}, true
		}
	}
	return DueInfo{}, false
}

// DueFromRaw scans a markdown line for a 📅 or due: date.
func DueFromRaw(raw string) DueInfo {
	if raw == "" {
		return DueInfo{}
	}
	if m := emojiDateTimeRe.FindStringSubmatch(raw); m != nil {
		if d, ok := ParseDate(m[1]); ok {
			return d
		}
	}
	if m := emojiDateRe.FindStringSubmatch(raw); m != nil {
		if d, ok := ParseDate(m[1]); ok {
			return DueInfo{At: d.At}
		}
	}
	if m := keyDateTimeRe.FindStringSubmatch(raw); m != nil {
		if d, ok := ParseDate(m[1]); ok {
			return d
		}
	}
	if m := keyDateRe.FindStringSubmatch(raw); m != nil {
		if d, ok := ParseDate(m[1]); ok {
			return DueInfo{At: d.At}
		}
	}
	return DueInfo{}
}

// dueFromValue interprets one structured due field from a query result.
func dueFromValue(value any) (DueInfo, bool) {
	switch v := value.(type) {
	case nil:
		return DueInfo{}, false
	case time.Time:
		return DueInfo{At: v, HasTime: true}, !v.IsZero()
	case string:
		return ParseDate(v)
	case map[string]any:
		return dueFromObject(v)
	}
	f, ok := toFloat(value)
	if !ok {
		return DueInfo{}, false
	}
	return DueInfo{At: time.UnixMilli(epochMillis(f)), HasTime: true}, true
}

func dueFromObject(obj map[string]any) (DueInfo, bool) {
	year, okY := intField(obj, "year")
	month, okM := intField(obj, "month")
	day, okD := intField(obj, "day")
	if okY && okM && okD {
		hour, hasHour := intField(obj, "hour")
		minute, hasMinute := intField(obj, "minute")
		second, _ := intField(obj, "second")
		at := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
		return DueInfo{At: at, HasTime: hasHour || hasMinute}, true
	}
	if s, ok := obj["date"].(string); ok {
		return ParseDate(s)
	}
	for _, key := range []string{"ts", "millis", "epochMillis"} {
		if f, ok := toFloat(obj[key]); ok {
			return DueInfo{At: time.UnixMilli(epochMillis(f)), HasTime: true}, true
		}
	}
	return DueInfo{}, false
}

// epochMillis treats values above 1e12 as milliseconds, else seconds.
func epochMillis(f float64) int64 {
	if f > 1_000_000_000_000 {
		return int64(f)
	}
	return int64(f * 1000)
}

func intField(obj map[string]any, key string) (int, bool) {
	f, ok := toFloat(obj[key])
	if !ok {
		return 0, false
	}
	return int(f), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
