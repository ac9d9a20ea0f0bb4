package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/outputfmt"
	"github.com/quailyquaily/tasknotify/internal/tasks"
	"github.com/quailyquaily/tasknotify/internal/telegram"
)

const (
	SafeMessageLength = 3900
	MaxLineLength     = 3500

	TitleTasks     = "Unfinished tasks"
	TitleReminders = "Reminders"

	CallbackList       = "list"
	CallbackDonePrefix = "done:"
)

// Message is one outbound chat message.
type Message struct {
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type ListOptions struct {
	Title           string
	Max             int
	IncludeFilePath bool
	Filter          *marker.TagPattern
	// Suffix, when set, is appended to each task line before the short id.
	Suffix func(tasks.Record) string
}

// RenderList renders records as one or more messages. Only the first
// message carries the keyboard: a Done button per shown task and a List
// refresh button. An empty list renders nothing.
func RenderList(records []tasks.Record, opts ListOptions) []Message {
	if len(records) == 0 {
		return nil
	}
	title := opts.Title
	if title == "" {
		title = TitleTasks
	}
	max := opts.Max
	if max < 1 {
		max = 1
	}
	shown := records
	if len(shown) > max {
		shown = shown[:max]
	}
	lines := make([]string, 0, len(shown))
	for _, r := range shown {
		lines = append(lines, TaskLine(r, opts))
	}
	footer := ""
	if len(records) > len(shown) {
		footer = fmt.Sprintf("...and %d more", len(records)-len(shown))
	}
	header := fmt.Sprintf("%s: %d", title, len(records))
	texts := SplitMessages(header, title+" (continued):", lines, footer)
	if len(texts) == 0 {
		return nil
	}
	out := make([]Message, len(texts))
	for i, text := range texts {
		out[i] = Message{Text: text}
	}
	out[0].Markup = Keyboard(shown)
	return out
}

// TaskLine renders "- <text> (<path>:<line>) #<shortId>".
func TaskLine(r tasks.Record, opts ListOptions) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(r.DisplayText(opts.Filter))
	if opts.IncludeFilePath && r.Path != "" {
		b.WriteString(" (")
		b.WriteString(r.Path)
		if r.HasLine() {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(r.Line + 1))
		}
		b.WriteString(")")
	}
	if opts.Suffix != nil {
		b.WriteString(opts.Suffix(r))
	}
	b.WriteString(" #")
	b.WriteString(r.ShortID)
	return b.String()
}

func Keyboard(shown []tasks.Record) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(shown)+1)
	for _, r := range shown {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "Done #" + r.ShortID,
			CallbackData: CallbackDonePrefix + r.ID,
		}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "List", CallbackData: CallbackList}})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// SplitMessages packs header, lines and footer into messages of at most
// SafeMessageLength units. Lines longer than MaxLineLength are cut with an
// ellipsis; follow-up messages start with continued.
func SplitMessages(header, continued string, lines []string, footer string) []string {
	var messages []string
	buffer := []string{header, ""}
	size := outputfmt.Len(header) + 1

	flush := func() {
		text := strings.TrimRight(strings.Join(buffer, "\n"), " \t\r\n")
		if text != "" {
			messages = append(messages, text)
		}
		buffer = []string{continued, ""}
		size = outputfmt.Len(continued) + 1
	}

	for _, line := range lines {
		line = outputfmt.Truncate(line, MaxLineLength)
		n := outputfmt.Len(line)
		if size+n+1 > SafeMessageLength {
			flush()
		}
		buffer = append(buffer, line)
		size += n + 1
	}
	if footer != "" {
		if size+outputfmt.Len(footer)+1 > SafeMessageLength {
			flush()
		}
		buffer = append(buffer, footer)
	}
	text := strings.TrimRight(strings.Join(buffer, "\n"), " \t\r\n")
	if text != "" {
		messages = append(messages, text)
	}
	return messages
}
