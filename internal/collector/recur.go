package collector

import (
	"context"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/markdown"
	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/remind"
	"github.com/quailyquaily/tasknotify/internal/tasks"
)

type SweepResult struct {
	Files    int
	Stamped  int
	Reopened int
}

// SweepRecurring reopens completed recurring tasks whose interval has
// elapsed since completion. Completed recurring lines without a completion
// stamp are stamped now and left closed.
func (c *Collector) SweepRecurring(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	files, err := c.vault.ListMarkdownFiles()
	if err != nil {
		return result, err
	}
	now := c.now()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Files++
		err := c.editLines(path, func(lines []string) (bool, error) {
			if markdown.Ignored(strings.Join(lines, "\n")) {
				return false, nil
			}
			changed := false
			for i, line := range lines {
				if !tasks.IsCompletedLine(line) {
					continue
				}
				iv, ok := marker.Recurrence(line)
				if !ok {
					continue
				}
				doneMs, stamped := marker.RecurDone(line)
				if !stamped {
					lines[i] = marker.UpsertRecurDone(line, now.UnixMilli())
					result.Stamped++
					changed = true
					continue
				}
				if !remind.RecurrenceDue(remind.FromMillis(doneMs), iv, now) {
					continue
				}
				reopened, ok := tasks.UncheckBox(line)
				if !ok {
					continue
				}
				lines[i] = marker.StripRecurDone(reopened)
				result.Reopened++
				changed = true
				c.logger.Info("recurrence_sweep_reopened", "path", path, "line", i+1, "every", iv.String())
			}
			return changed, nil
		})
		if err != nil {
			c.logger.Warn("recurrence_sweep_file_failed", "path", path, "error", err.Error())
		}
	}
	return result, nil
}
