package tasks

import (
	"math"
	"regexp"
	"strings"
)

const (
	EmojiHighest = "⏫"
	EmojiHigh    = "\U0001F53C"
	EmojiLow     = "\U0001F53D"
	EmojiLowest  = "⏬"
)

var priorityKeywordRe = regexp.MustCompile(`(?i)\bpriority[:\s]*([a-zA-Z]+)\b`)

// NormalizePriority maps a numeric, keyword or nested object priority onto
// 0..4. ok is false when value carries no recognizable priority.
func NormalizePriority(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		return priorityKeyword(v)
	case map[string]any:
		for _, key := range []string{"value", "priority", "id", "name", "label"} {
			if p, ok := NormalizePriority(v[key]); ok {
				return p, true
			}
		}
		return 0, false
	}
	f, ok := toFloat(value)
	if !ok {
		return 0, false
	}
	switch {
	case f <= 0:
		return 0, true
	case f >= 4:
		return 4, true
	default:
		return int(math.Floor(f + 0.5)), true
	}
}

func priorityKeyword(word string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "highest", "urgent", "top":
		return 4, true
	case "high":
		return 3, true
	case "medium", "normal", "default":
		return 2, true
	case "low":
		return 1, true
	case "lowest", "none":
		return 0, true
	default:
		return 0, false
	}
}

// PriorityFromRaw reads priority emoji, then a "priority: <word>" keyword.
func PriorityFromRaw(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	switch {
	case strings.Contains(raw, EmojiHighest):
		return 4, true
	case strings.Contains(raw, EmojiHigh):
		return 3, true
	case strings.Contains(raw, EmojiLow):
		return 1, true
	case strings.Contains(raw, EmojiLowest):
		return 0, true
	}
	if m := priorityKeywordRe.FindStringSubmatch(raw); m != nil {
		return priorityKeyword(m[1])
	}
	return 0, false
}

// PriorityEmoji renders a priority marker; medium (2) has none.
func PriorityEmoji(priority int) string {
	switch {
	case priority >= 4:
		return EmojiHighest
	case priority == 3:
		return EmojiHigh
	case priority == 1:
		return EmojiLow
	case priority <= 0:
		return EmojiLowest
	default:
		return ""
	}
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case uint:
		f = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
