package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultTableWidth   = 100
	defaultMinTextWidth = 30
)

type TaskRow struct {
	ID   string
	Due  string
	Text string
	// Source is "path:line", printed dimmed under the text.
	Source string
}

type TaskTableOptions struct {
	Title        string
	Rows         []TaskRow
	EmptyText    string
	DefaultWidth int
	MinTextWidth int
}

// PrintTaskTable prints rows as ID, DUE and TASK columns, wrapping the task
// text to the terminal width when out is a terminal.
func PrintTaskTable(out io.Writer, opts TaskTableOptions) {
	if out == nil {
		out = os.Stdout
	}
	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 {
		empty := strings.TrimSpace(opts.EmptyText)
		if empty == "" {
			empty = "No tasks."
		}
		fmt.Fprintln(out, Warn(empty))
		return
	}

	idWidth := columnWidth("ID", opts.Rows, func(r TaskRow) string { return r.ID })
	dueWidth := columnWidth("DUE", opts.Rows, func(r TaskRow) string { return r.Due })
	textWidth := textColumnWidth(out, idWidth+dueWidth+4, opts.DefaultWidth, opts.MinTextWidth)

	fmt.Fprintf(out, "%s  %s  %s\n", Key(padRight("ID", idWidth)), Key(padRight("DUE", dueWidth)), Key("TASK"))
	fmt.Fprintf(out, "%s  %s  %s\n", Dim(strings.Repeat("-", idWidth)), Dim(strings.Repeat("-", dueWidth)), Dim(strings.Repeat("-", textWidth)))

	indent := strings.Repeat(" ", idWidth+dueWidth+4)
	for _, row := range opts.Rows {
		lines := wrapText(row.Text, textWidth)
		fmt.Fprintf(out, "%s  %s  %s\n", Success(padRight(row.ID, idWidth)), padRight(row.Due, dueWidth), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(out, "%s%s\n", indent, line)
		}
		if row.Source != "" {
			fmt.Fprintf(out, "%s%s\n", indent, Dim(row.Source))
		}
	}
}

func columnWidth(header string, rows []TaskRow, field func(TaskRow) string) int {
	width := utf8.RuneCountInString(header)
	for _, row := range rows {
		if n := utf8.RuneCountInString(field(row)); n > width {
			width = n
		}
	}
	return width
}

func textColumnWidth(out io.Writer, used, defaultWidth, minWidth int) int {
	if defaultWidth <= 0 {
		defaultWidth = defaultTableWidth
	}
	if minWidth <= 0 {
		minWidth = defaultMinTextWidth
	}
	width := defaultWidth
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if w, _, err := term.GetSize(int(file.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	if width-used < minWidth {
		return minWidth
	}
	return width - used
}

func padRight(s string, width int) string {
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 {
		return s
	}
	return s + strings.Repeat(" ", missing)
}

func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
