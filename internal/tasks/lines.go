package tasks

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/marker"
)

var (
	uncheckedLineRe = regexp.MustCompile(`^\s*-\s*\[ \]\s*`)
	uncheckedTextRe = regexp.MustCompile(`^\s*-\s*\[ \]\s*(.*)$`)
	taskLineRe      = regexp.MustCompile(`^\s*-\s*\[[ xX]\]\s*`)
	completedLineRe = regexp.MustCompile(`^\s*-\s*\[[xX]\]\s*`)
	checkboxRe      = regexp.MustCompile(`\[[^\]]\]`)
	checkedRe       = regexp.MustCompile(`\[[xX]\]`)
)

func IsUncheckedLine(line string) bool { return uncheckedLineRe.MatchString(line) }

func IsTaskLine(line string) bool { return taskLineRe.MatchString(line) }

func IsCompletedLine(line string) bool { return completedLineRe.MatchString(line) }

// UncheckedText returns the text after an empty checkbox.
func UncheckedText(line string) (string, bool) {
	m := uncheckedTextRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MatchesLine reports whether line is a task line that still carries the
// record's raw text or display text.
func MatchesLine(line string, r Record, requireUnchecked bool) bool {
	if requireUnchecked {
		if !IsUncheckedLine(line) {
			return false
		}
	} else if !IsTaskLine(line) {
		return false
	}
	if r.Raw != "" && strings.Contains(line, r.Raw) {
		return true
	}
	return r.Text != "" && strings.Contains(line, r.Text)
}

// CheckBox marks the first checkbox done. ok is false when the line has no
// checkbox or is already checked.
func CheckBox(line string) (string, bool) {
	return setFirstCheckbox(line, "[x]")
}

// UncheckBox reopens the first checkbox.
func UncheckBox(line string) (string, bool) {
	return setFirstCheckbox(line, "[ ]")
}

func setFirstCheckbox(line, box string) (string, bool) {
	loc := checkboxRe.FindStringIndex(line)
	if loc == nil {
		return line, false
	}
	updated := line[:loc[0]] + box + line[loc[1]:]
	if updated == line {
		return line, false
	}
	return updated, true
}

// FromLine builds a record for one unchecked line found by a vault scan.
// index is the zero-based line number inside path.
func FromLine(path string, index int, line string) (Record, bool) {
	body, ok := UncheckedText(line)
	if !ok {
		return Record{}, false
	}
	text := strings.TrimSpace(body)
	if text == "" {
		text = UnnamedTask
	}
	id, ok := marker.StoredTaskID(line)
	if !ok {
		id = LineHash(path, index, line)
	}
	priority, ok := PriorityFromRaw(line)
	if !ok {
		priority = 0
	}
	due := DueFromRaw(line)
	return Record{
		ID:         id,
		ShortID:    shortID(id),
		Text:       text,
		Path:       path,
		Line:       index,
		Raw:        line,
		Priority:   priority,
		Due:        due.At,
		DueHasTime: due.HasTime,
		Reminders:  marker.DedupeIntervals(marker.Reminders(line)),
	}, true
}

// LineHash is the id of an untagged line discovered by a vault scan.
func LineHash(path string, index int, line string) string {
	return marker.HashTaskID(path + "::" + strconv.Itoa(index) + "::" + line)
}

func hasCheckedBox(raw string) bool {
	return checkedRe.MatchString(raw)
}
