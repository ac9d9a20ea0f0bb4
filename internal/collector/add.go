package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
	"github.com/quailyquaily/tasknotify/internal/vault"
)

var ErrEmptyTask = errors.New("collector: empty task text")

type AddOptions struct {
	Options
	DailyNotePathTemplate string
	// Shared appends the #shared marker so guest chats can see the task.
	Shared bool
}

// Added describes a task appended to a note.
type Added struct {
	Record tasks.Record
	// Text is the cleaned task text without due, priority or filter tokens.
	Text string
	Path string
}

// AddTask turns free text into a checkbox line and appends it to today's
// note.
func (c *Collector) AddTask(ctx context.Context, input string, opts AddOptions) (Added, error) {
	if strings.TrimSpace(input) == "" {
		return Added{}, ErrEmptyTask
	}
	if err := ctx.Err(); err != nil {
		return Added{}, err
	}
	built := tasks.BuildLineFromInput(input)
	line := built.Line
	if filter := opts.filter(); filter != nil && !filter.Match(line) {
		line = insertAfterCheckbox(line, filter.Tag())
	}
	if opts.Shared && !marker.IsShared(line) {
		line += " " + marker.SharedTag
	}

	now := c.now()
	resolver := vault.DailyNoteResolver{
		Vault:        c.vault,
		Notes:        c.dailyNotes,
		PathTemplate: opts.DailyNotePathTemplate,
		Logger:       c.logger,
	}
	path, err := resolver.Resolve(now)
	if err != nil {
		return Added{}, fmt.Errorf("resolve daily note: %w", err)
	}
	content, err := c.vault.Read(path)
	if err != nil {
		return Added{}, err
	}

	prefix := content
	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}
	index := strings.Count(prefix, "\n")
	if opts.TaggingMode == settings.TagAlways {
		line = marker.EnsureTaskID(line, tasks.LineHash(path, index, line))
	}
	if err := c.vault.Write(path, prefix+line); err != nil {
		return Added{}, fmt.Errorf("append task to %s: %w", path, err)
	}

	rec, ok := tasks.FromLine(path, index, line)
	if !ok {
		return Added{}, fmt.Errorf("appended line is not an open task: %q", line)
	}
	c.logger.Info("task_added", "id", rec.ID, "path", path, "line", index+1, "shared", opts.Shared)
	return Added{Record: rec, Text: built.Text, Path: path}, nil
}

func insertAfterCheckbox(line, tag string) string {
	const box = "- [ ] "
	if rest, ok := strings.CutPrefix(line, box); ok {
		return box + tag + " " + rest
	}
	return line + " " + tag
}
