package marker

import (
	"strconv"
	"strings"
)

type Unit string

const (
	UnitMinute Unit = "m"
	UnitHour   Unit = "h"
	UnitDay    Unit = "d"
	UnitWeek   Unit = "w"
	UnitMonth  Unit = "mo"
)

// Interval is a positive offset such as the N<unit> part of #recur/2w or
// #remind/30m.
type Interval struct {
	Value int
	Unit  Unit
}

func (i Interval) String() string {
	return strconv.Itoa(i.Value) + string(i.Unit)
}

// SubDay reports whether the unit is finer than a day.
func (i Interval) SubDay() bool {
	return i.Unit == UnitMinute || i.Unit == UnitHour
}

func ParseUnit(raw string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m":
		return UnitMinute, true
	case "h":
		return UnitHour, true
	case "d":
		return UnitDay, true
	case "w":
		return UnitWeek, true
	case "mo", "month", "months":
		return UnitMonth, true
	default:
		return "", false
	}
}

func parseInterval(value, unit string) (Interval, bool) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return Interval{}, false
	}
	u, ok := ParseUnit(unit)
	if !ok {
		return Interval{}, false
	}
	return Interval{Value: n, Unit: u}, true
}

// Recurrence returns the first valid #recur marker in text.
func Recurrence(text string) (Interval, bool) {
	m, ok := findFirst(recurRe, text)
	if !ok {
		return Interval{}, false
	}
	return parseInterval(m.groups[0], m.groups[1])
}

// Reminders returns every valid #remind marker in text, in order.
func Reminders(text string) []Interval {
	var out []Interval
	for _, m := range findAll(remindRe, text) {
		if iv, ok := parseInterval(m.groups[0], m.groups[1]); ok {
			out = append(out, iv)
		}
	}
	return out
}

// DedupeIntervals keeps the first occurrence of each value/unit pair.
func DedupeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Interval]struct{}, len(in))
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if _, ok := seen[iv]; ok {
			continue
		}
		seen[iv] = struct{}{}
		out = append(out, iv)
	}
	return out
}

// RecurDone returns the completion timestamp (epoch ms) stored in the first
// #recurdone marker.
func RecurDone(text string) (int64, bool) {
	m, ok := findFirst(recurDoneRe, text)
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(m.groups[0], 10, 64)
	if err != nil || ts <= 0 {
		return 0, false
	}
	return ts, true
}

// UpsertRecurDone rewrites the first #recurdone marker in place or appends a
// new one.
func UpsertRecurDone(line string, completedAtMs int64) string {
	if completedAtMs < 1 {
		completedAtMs = 1
	}
	token := RecurDonePrefix + strconv.FormatInt(completedAtMs, 10)
	if m, ok := findFirst(recurDoneRe, line); ok {
		return line[:m.start] + m.lead + token + line[m.end:]
	}
	sep := " "
	if strings.HasSuffix(line, " ") {
		sep = ""
	}
	return line + sep + token
}

// StripRecurDone removes every #recurdone marker. Leading indentation is kept.
func StripRecurDone(line string) string {
	matches := findAll(recurDoneRe, line)
	if len(matches) == 0 {
		return line
	}
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	replaced := replaceMatches(line, matches, func(match) string { return " " })
	rest := strings.TrimLeft(replaced, " \t")
	stripped := strings.TrimRight(multiSpace.ReplaceAllString(rest, " "), " \t\r\n")
	if stripped == "" {
		return line
	}
	return indent + stripped
}
