package tasks

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingCheckboxRe = regexp.MustCompile(`^\s*-\s*\[[ xX]\]\s*`)
	inputDueRe        = regexp.MustCompile(`(?i)(?:\b(?:due|date)\s*[:=]?\s*|` + EmojiDue + `\s*)(\d{4}-\d{2}-\d{2})(?:[T\s](\d{2}:\d{2})(?::\d{2})?)?`)
	inputPShortRe     = regexp.MustCompile(`(?i)\bp([0-4])\b`)
	inputPNumberRe    = regexp.MustCompile(`(?i)\bpriority\s*[:=]?\s*([0-4])\b`)
	inputPWordRe      = regexp.MustCompile(`(?i)\bpriority\s*[:=]?\s*(highest|urgent|top|high|medium|normal|default|low|lowest|none|p[0-4]|[0-4])\b`)
	inputPEmojiRe     = regexp.MustCompile(`[` + EmojiHighest + EmojiLowest + EmojiHigh + EmojiLow + `]`)
	multiSpaceRe      = regexp.MustCompile(`\s{2,}`)
)

// NewTaskLine is the checkbox line rendered from free-form chat input.
type NewTaskLine struct {
	Line        string
	Text        string
	DueDate     string
	Priority    int
	HasPriority bool
}

// BuildLineFromInput extracts an inline due date and priority from text,
// removes those tokens and renders "- [ ] <text> [emoji] [📅 date]".
func BuildLineFromInput(input string) NewTaskLine {
	cleaned := leadingCheckboxRe.ReplaceAllString(strings.TrimSpace(input), "")

	out := NewTaskLine{}
	if m := inputDueRe.FindStringSubmatch(cleaned); m != nil {
		candidate := m[1]
		if m[2] != "" {
			candidate = m[1] + " " + m[2]
		}
		if _, ok := ParseDate(candidate); ok {
			out.DueDate = candidate
		}
	}
	out.Priority, out.HasPriority = priorityFromInput(cleaned)

	cleaned = inputDueRe.ReplaceAllString(cleaned, " ")
	cleaned = inputPWordRe.ReplaceAllString(cleaned, " ")
	cleaned = inputPShortRe.ReplaceAllString(cleaned, " ")
	cleaned = inputPEmojiRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(multiSpaceRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		cleaned = UnnamedTask
	}
	out.Text = cleaned

	var b strings.Builder
	b.WriteString("- [ ] ")
	b.WriteString(cleaned)
	if out.HasPriority {
		if emoji := PriorityEmoji(out.Priority); emoji != "" {
			b.WriteString(" ")
			b.WriteString(emoji)
		}
	}
	if out.DueDate != "" {
		b.WriteString(" " + EmojiDue + " ")
		b.WriteString(out.DueDate)
	}
	out.Line = b.String()
	return out
}

func priorityFromInput(input string) (int, bool) {
	if p, ok := PriorityFromRaw(input); ok {
		return p, true
	}
	if m := inputPShortRe.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := inputPNumberRe.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}
