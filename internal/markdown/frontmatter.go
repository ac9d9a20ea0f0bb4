package markdown

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// DirectiveKey is the frontmatter key a note uses to opt out of task
// collection ("tasknotify: ignore").
const DirectiveKey = "tasknotify"

// ParseFrontmatter parses YAML frontmatter into a typed object and returns the markdown body.
// ok=false means either no frontmatter exists, or frontmatter is invalid.
func ParseFrontmatter[T any](contents string) (T, string, bool) {
	var zero T
	raw, body, hasFrontmatter := SplitFrontmatter(contents)
	if !hasFrontmatter {
		return zero, contents, false
	}

	var out T
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		return zero, body, false
	}
	return out, body, true
}

// Directive returns the lowercased "tasknotify" frontmatter value. Invalid
// YAML falls back to a line scan so one bad key does not re-enable a note.
func Directive(contents string) string {
	type directive struct {
		Value string `yaml:"tasknotify"`
	}
	fm, _, ok := ParseFrontmatter[directive](contents)
	if ok {
		return strings.ToLower(strings.TrimSpace(fm.Value))
	}
	raw, _, hasFrontmatter := SplitFrontmatter(contents)
	if !hasFrontmatter {
		return ""
	}
	prefix := DirectiveKey + ":"
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), prefix) {
			return strings.ToLower(strings.TrimSpace(trimmed[len(prefix):]))
		}
	}
	return ""
}

// Ignored reports whether a note opted out of task collection.
func Ignored(contents string) bool {
	return Directive(contents) == "ignore"
}

// SplitFrontmatter splits a markdown document into raw YAML frontmatter and body.
// The delimiters must be a leading line "---" and a later closing line "---".
func SplitFrontmatter(contents string) (string, string, bool) {
	lines := strings.Split(strings.ReplaceAll(contents, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", contents, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "---" {
			continue
		}
		return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
	}
	return "", contents, false
}
