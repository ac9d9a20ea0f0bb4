package marker

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// HashTaskID computes the deterministic id for a task identity string: a
// 32-bit multiply-by-33 xor hash over UTF-16 code units, rendered as eight
// zero-padded hex digits followed by the input length in hex.
func HashTaskID(input string) string {
	units := utf16.Encode([]rune(input))
	hash := uint32(5381)
	for _, c := range units {
		hash = (hash * 33) ^ uint32(c)
	}
	return fmt.Sprintf("%08x%x", hash, len(units))
}

// StoredTaskID returns the lowercased id of the first #taskid marker in line.
func StoredTaskID(line string) (string, bool) {
	m, ok := findFirst(taskIDRe, line)
	if !ok {
		return "", false
	}
	return strings.ToLower(m.groups[0]), true
}

// StripTaskID removes every #taskid marker from text for display. Text that
// would become empty is returned unchanged.
func StripTaskID(text string) string {
	matches := findAll(taskIDRe, text)
	if len(matches) == 0 {
		return text
	}
	cleaned := collapse(replaceMatches(text, matches, func(match) string { return " " }))
	if cleaned == "" {
		return text
	}
	return cleaned
}

// EnsureTaskID appends a #taskid marker for id unless line already has one.
func EnsureTaskID(line, id string) string {
	if _, ok := StoredTaskID(line); ok {
		return line
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return line
	}
	sep := " "
	if strings.HasSuffix(line, " ") {
		sep = ""
	}
	return line + sep + TaskIDPrefix + id
}
