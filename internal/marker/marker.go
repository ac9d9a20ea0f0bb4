// Package marker parses and rewrites the inline markers that tasknotify
// stores inside markdown task lines: #taskid/<hex>, #recur/<N><unit>,
// #recurdone/<epoch-ms>, #remind/<N><unit> and #shared.
//
// Every marker must be preceded by start-of-line or whitespace and followed by
// whitespace, end-of-line or one of ".,;:!?".
package marker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	TaskIDPrefix    = "#taskid/"
	RecurPrefix     = "#recur/"
	RecurDonePrefix = "#recurdone/"
	RemindPrefix    = "#remind/"
	SharedTag       = "#shared"
)

var (
	taskIDRe    = regexp.MustCompile(`(?i)(^|\s)#taskid/([0-9a-f]+)`)
	recurRe     = regexp.MustCompile(`(?i)(^|\s)#recur/(\d+)(months|month|mo|[mhdw])`)
	recurDoneRe = regexp.MustCompile(`(?i)(^|\s)#recurdone/(\d+)`)
	remindRe    = regexp.MustCompile(`(?i)(^|\s)#remind/(\d+)(months|month|mo|[mhdw])`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
)

// match is one bounded marker occurrence. start/end cover the whole match,
// including the leading whitespace; groups holds submatches after the prefix.
type match struct {
	start  int
	end    int
	lead   string
	groups []string
}

func findAll(re *regexp.Regexp, text string) []match {
	idx := re.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]match, 0, len(idx))
	for _, loc := range idx {
		if !isTrailingBoundary(text, loc[1]) {
			continue
		}
		m := match{start: loc[0], end: loc[1], lead: text[loc[2]:loc[3]]}
		for i := 4; i+1 < len(loc); i += 2 {
			if loc[i] < 0 {
				m.groups = append(m.groups, "")
				continue
			}
			m.groups = append(m.groups, text[loc[i]:loc[i+1]])
		}
		out = append(out, m)
	}
	return out
}

func findFirst(re *regexp.Regexp, text string) (match, bool) {
	all := findAll(re, text)
	if len(all) == 0 {
		return match{}, false
	}
	return all[0], true
}

func isTrailingBoundary(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(".,;:!?", r)
}

// replaceMatches substitutes every bounded match with repl.
func replaceMatches(text string, matches []match, repl func(match) string) string {
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.start])
		b.WriteString(repl(m))
		last = m.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// collapse squeezes whitespace runs and trims the result.
func collapse(text string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}

// TagPattern matches a bounded, case-insensitive tag occurrence such as the
// configured global filter tag.
type TagPattern struct {
	tag string
	re  *regexp.Regexp
}

// NormalizeTag trims tag and prefixes it with '#' when missing.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}

// NewTagPattern returns nil for an empty tag; a nil pattern matches nothing.
func NewTagPattern(tag string) *TagPattern {
	tag = NormalizeTag(tag)
	if tag == "" {
		return nil
	}
	return &TagPattern{
		tag: tag,
		re:  regexp.MustCompile(`(?i)(^|\s)` + regexp.QuoteMeta(tag)),
	}
}

func (p *TagPattern) Tag() string {
	if p == nil {
		return ""
	}
	return p.tag
}

// Match reports whether text carries the tag.
func (p *TagPattern) Match(text string) bool {
	if p == nil {
		return false
	}
	return len(findAll(p.re, text)) > 0
}

// Strip removes the first occurrence of the tag. If nothing would remain the
// input is returned unchanged.
func (p *TagPattern) Strip(text string) string {
	if p == nil {
		return text
	}
	m, ok := findFirst(p.re, text)
	if !ok {
		return text
	}
	cleaned := collapse(text[:m.start] + " " + text[m.end:])
	if cleaned == "" {
		return text
	}
	return cleaned
}

var sharedPattern = NewTagPattern(SharedTag)

// IsShared reports whether text carries the #shared marker.
func IsShared(text string) bool {
	return sharedPattern.Match(text)
}
