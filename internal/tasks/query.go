package tasks

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/marker"
)

// Item is one task object returned by the task-query collaborator. Its shape
// is not fixed; accessors below try each known field name in order.
type Item map[string]any

var (
	dueFields      = []string{"dueDate", "due", "dueOn", "dueDateTime", "dueAt", "dueDateString"}
	priorityFields = []string{"priority", "priorityNumber", "priorityValue", "urgency"}
	externalFields = []string{"id", "uuid", "uid", "taskId", "blockId", "$id"}
	tagTokenFields = []string{"tag", "value", "name", "text", "label"}

	tasksKeywordRe = regexp.MustCompile(`(?i)^tasks\b`)
	tasksPrefixRe  = regexp.MustCompile(`(?i)^tasks\s+`)
)

func (it Item) str(key string) string {
	s, _ := it[key].(string)
	return s
}

func (it Item) obj(key string) map[string]any {
	m, _ := it[key].(map[string]any)
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Raw returns the original markdown line when the item carries one.
func (it Item) Raw() string {
	return firstNonEmpty(it.str("originalMarkdown"), it.str("raw"), it.str("lineText"))
}

func (it Item) Text() string {
	return firstNonEmpty(it.str("description"), it.str("text"), it.str("task"), it.str("content"), it.Raw(), UnnamedTask)
}

func (it Item) Path() string {
	if p := firstNonEmpty(it.str("path"), it.str("filePath")); p != "" {
		return p
	}
	if file := it.obj("file"); file != nil {
		p, _ := file["path"].(string)
		return p
	}
	return ""
}

// Line returns the zero-based line, NoLine when absent or not numeric.
func (it Item) Line() int {
	var candidate any
	for _, key := range []string{"line", "lineNumber"} {
		if v, ok := it[key]; ok && v != nil {
			candidate = v
			break
		}
	}
	if candidate == nil {
		if pos := it.obj("position"); pos != nil {
			if start, ok := pos["start"].(map[string]any); ok {
				candidate = start["line"]
			}
		}
	}
	f, ok := toFloat(candidate)
	if !ok {
		return NoLine
	}
	return int(f)
}

func (it Item) Completed() bool {
	if b, _ := it["completed"].(bool); b {
		return true
	}
	if b, _ := it["isCompleted"].(bool); b {
		return true
	}
	if status := it.obj("status"); status != nil {
		if b, _ := status["isCompleted"].(bool); b {
			return true
		}
		if typ, ok := status["type"].(string); ok && strings.EqualFold(typ, "done") {
			return true
		}
	}
	return hasCheckedBox(it.Raw())
}

func (it Item) Priority() int {
	for _, key := range priorityFields {
		if p, ok := NormalizePriority(it[key]); ok {
			return p
		}
	}
	if p, ok := PriorityFromRaw(it.Raw()); ok {
		return p
	}
	return 0
}

// Due prefers the first structured field with a time of day, then the first
// parsable field, then the raw line.
func (it Item) Due() DueInfo {
	candidates := make([]any, 0, len(dueFields)+1)
	for _, key := range dueFields {
		candidates = append(candidates, it[key])
	}
	if dates := it.obj("dates"); dates != nil {
		candidates = append(candidates, dates["due"])
	}
	var first DueInfo
	found := false
	for _, c := range candidates {
		d, ok := dueFromValue(c)
		if !ok {
			continue
		}
		if d.HasTime {
			return d
		}
		if !found {
			first, found = d, true
		}
	}
	if found {
		return DueInfo{At: first.At}
	}
	return DueFromRaw(it.Raw())
}

func (it Item) ExternalID() string {
	for _, key := range externalFields {
		if id := externalID(it[key]); id != "" {
			return id
		}
	}
	return ""
}

func externalID(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if inner, ok := v["id"]; ok && inner != nil {
			return externalID(inner)
		}
		return externalID(v["value"])
	}
	if f, ok := toFloat(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// Tags returns the string entries of the tags array.
func (it Item) Tags() []string {
	list, _ := it["tags"].([]any)
	var out []string
	for _, entry := range list {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (it Item) tagReminders() []marker.Interval {
	list, _ := it["tags"].([]any)
	var out []marker.Interval
	for _, entry := range list {
		token := ""
		switch v := entry.(type) {
		case string:
			token = v
		case map[string]any:
			for _, key := range tagTokenFields {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					token = s
					break
				}
			}
		}
		if token == "" {
			continue
		}
		if !strings.HasPrefix(token, "#") {
			token = "#" + token
		}
		out = append(out, marker.Reminders(" "+token+" ")...)
	}
	return out
}

// Record normalizes the item. A stored #taskid wins; otherwise the id hashes
// path, line and content, plus the external id when present.
func (it Item) Record() Record {
	text := it.Text()
	raw := it.Raw()
	path := it.Path()
	line := it.Line()
	due := it.Due()

	var reminders []marker.Interval
	reminders = append(reminders, marker.Reminders(raw)...)
	reminders = append(reminders, marker.Reminders(text)...)
	reminders = append(reminders, it.tagReminders()...)

	source := raw
	if source == "" {
		source = text
	}
	id, ok := marker.StoredTaskID(source)
	if !ok {
		lineKey := ""
		if line != NoLine {
			lineKey = strconv.Itoa(line)
		}
		pieces := []string{path, lineKey, source}
		if ext := it.ExternalID(); ext != "" {
			pieces = append(pieces, "external:"+ext)
		}
		id = marker.HashTaskID(strings.Join(pieces, "::"))
	}
	return Record{
		ID:         id,
		ShortID:    shortID(id),
		Text:       text,
		Path:       path,
		Line:       line,
		Raw:        raw,
		Priority:   it.Priority(),
		Due:        due.At,
		DueHasTime: due.HasTime,
		Reminders:  marker.DedupeIntervals(reminders),
	}
}

// MatchesTag reports whether the item passes the global filter tag. A nil
// filter passes everything.
func (it Item) MatchesTag(r Record, filter *marker.TagPattern) bool {
	if filter == nil {
		return true
	}
	want := strings.ToLower(filter.Tag())
	for _, tag := range it.Tags() {
		if strings.ToLower(marker.NormalizeTag(tag)) == want {
			return true
		}
	}
	return filter.Match(r.Raw) || filter.Match(r.Text)
}

// NormalizeQueryResult unwraps an array or a {tasks|items|results} object
// into task items. Non-object entries are dropped.
func NormalizeQueryResult(result any) []Item {
	var list []any
	switch v := result.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"tasks", "items", "results"} {
			if arr, ok := v[key].([]any); ok {
				list = arr
				break
			}
		}
	}
	out := make([]Item, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, Item(m))
		}
	}
	return out
}

// NormalizeQuery strips a ```tasks fence or a leading "tasks " keyword.
func NormalizeQuery(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n")
		first := strings.TrimSpace(strings.TrimPrefix(lines[0], "```"))
		content := lines[1:]
		if n := len(content); n > 0 && strings.HasPrefix(strings.TrimSpace(content[n-1]), "```") {
			content = content[:n-1]
		}
		if tasksKeywordRe.MatchString(first) {
			if after := strings.TrimSpace(tasksKeywordRe.ReplaceAllString(first, "")); after != "" {
				content = append([]string{after}, content...)
			}
		}
		return strings.TrimSpace(strings.Join(content, "\n"))
	}
	if tasksPrefixRe.MatchString(trimmed) {
		return strings.TrimSpace(tasksPrefixRe.ReplaceAllString(trimmed, ""))
	}
	return trimmed
}
