package outputfmt

import (
	"unicode/utf16"
	"unicode/utf8"
)

const Ellipsis = "..."

// Len counts UTF-16 code units, the unit Telegram's message limits use.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Truncate shortens s to at most limit UTF-16 units, ending with an
// ellipsis when anything was cut. Runes are never split.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if Len(s) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return Ellipsis[:limit]
	}
	budget := limit - len(Ellipsis)
	used := 0
	end := 0
	for end < len(s) {
		r, size := utf8.DecodeRuneInString(s[end:])
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if used+w > budget {
			break
		}
		used += w
		end += size
	}
	return s[:end] + Ellipsis
}
