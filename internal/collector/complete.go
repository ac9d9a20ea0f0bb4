package collector

import (
	"context"
	"errors"

	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
)

var ErrTaskNotFound = errors.New("collector: task not found")

// FindByID resolves a full or short id against the cached list, then
// against a fresh collection.
func (c *Collector) FindByID(ctx context.Context, opts Options, id string) (tasks.Record, bool, error) {
	if rec, ok := tasks.FindByID(c.Cached(), id); ok {
		return rec, true, nil
	}
	records, err := c.Collect(ctx, opts)
	if err != nil {
		return tasks.Record{}, false, err
	}
	rec, ok := tasks.FindByID(records, id)
	return rec, ok, nil
}

// MarkComplete checks the task's box in its source file. It reports false
// when no open line for the task could be found. Recurring tasks get a
// #recurdone stamp so the sweep knows when to reopen them.
func (c *Collector) MarkComplete(ctx context.Context, rec tasks.Record, mode settings.TaggingMode) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	paths := []string{rec.Path}
	if rec.Path == "" {
		files, err := c.vault.ListMarkdownFiles()
		if err != nil {
			return false, err
		}
		paths = files
	}
	nowMs := c.now().UnixMilli()
	for _, path := range paths {
		done := false
		err := c.editLines(path, func(lines []string) (bool, error) {
			idx, ok := completionLine(lines, rec)
			if !ok {
				return false, nil
			}
			line, changed := tasks.CheckBox(lines[idx])
			if !changed {
				return false, nil
			}
			if mode != settings.TagNever {
				line = marker.EnsureTaskID(line, rec.ID)
			}
			if _, recurring := marker.Recurrence(line); recurring {
				line = marker.UpsertRecurDone(line, nowMs)
			}
			lines[idx] = line
			done = true
			return true, nil
		})
		if err != nil {
			return false, err
		}
		if done {
			c.forget(rec.ID)
			c.logger.Info("task_completed", "id", rec.ID, "path", path)
			return true, nil
		}
	}
	return false, nil
}

// completionLine prefers the recorded location, then a stored id marker,
// then the first open line carrying the task text.
func completionLine(lines []string, rec tasks.Record) (int, bool) {
	if rec.HasLine() {
		for _, idx := range []int{rec.Line, rec.Line - 1} {
			if idx >= 0 && idx < len(lines) && tasks.MatchesLine(lines[idx], rec, true) {
				return idx, true
			}
		}
	}
	for i, line := range lines {
		if !tasks.IsUncheckedLine(line) {
			continue
		}
		if id, ok := marker.StoredTaskID(line); ok && id == rec.ID {
			return i, true
		}
	}
	if rec.Raw == "" && rec.Text == "" {
		return 0, false
	}
	for i, line := range lines {
		if tasks.MatchesLine(line, rec, true) {
			return i, true
		}
	}
	return 0, false
}

// CompleteByID combines FindByID and MarkComplete. ErrTaskNotFound is
// returned when the id does not resolve to an open task.
func (c *Collector) CompleteByID(ctx context.Context, opts Options, id string) (tasks.Record, error) {
	rec, ok, err := c.FindByID(ctx, opts, id)
	if err != nil {
		return tasks.Record{}, err
	}
	if !ok {
		return tasks.Record{}, ErrTaskNotFound
	}
	done, err := c.MarkComplete(ctx, rec, opts.TaggingMode)
	if err != nil {
		return rec, err
	}
	if !done {
		return rec, ErrTaskNotFound
	}
	return rec, nil
}
