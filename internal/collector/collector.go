// Package collector gathers open tasks from the vault or the task-query
// engine and applies edits back to the markdown source.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/tasknotify/internal/markdown"
	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
	"github.com/quailyquaily/tasknotify/internal/tasksapi"
	"github.com/quailyquaily/tasknotify/internal/vault"
)

// Options are the collection knobs taken from settings.
type Options struct {
	Query           string
	GlobalFilterTag string
	TaggingMode     settings.TaggingMode
}

func OptionsFrom(st settings.Settings) Options {
	return Options{
		Query:           st.TasksQuery,
		GlobalFilterTag: st.GlobalFilterTag,
		TaggingMode:     st.TaskIDTaggingMode,
	}
}

func (o Options) filter() *marker.TagPattern { return marker.NewTagPattern(o.GlobalFilterTag) }

type Collector struct {
	vault      vault.Vault
	querier    tasksapi.Querier
	dailyNotes vault.DailyNotes
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache []tasks.Record
}

// Deps wires a Collector. Querier and DailyNotes are optional: without a
// querier every collection scans the vault, without daily notes new tasks
// land in a self-named YYYY-MM-DD.md note.
type Deps struct {
	Vault      vault.Vault
	Querier    tasksapi.Querier
	DailyNotes vault.DailyNotes
	Logger     *slog.Logger
}

func New(d Deps) *Collector {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		vault:      d.Vault,
		querier:    d.Querier,
		dailyNotes: d.DailyNotes,
		logger:     logger,
		now:        time.Now,
	}
}

// Collect returns the open tasks matching opts in presentation order and
// refreshes the lookup cache.
func (c *Collector) Collect(ctx context.Context, opts Options) ([]tasks.Record, error) {
	records, ok := c.collectFromQuery(ctx, opts)
	if !ok {
		var err error
		records, err = c.scanVault(ctx, opts)
		if err != nil {
			return nil, err
		}
	}
	sorted := tasks.Sort(records)
	c.mu.Lock()
	c.cache = append([]tasks.Record(nil), sorted...)
	c.mu.Unlock()
	return sorted, nil
}

// Cached returns the result of the last Collect.
func (c *Collector) Cached() []tasks.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tasks.Record, len(c.cache))
	copy(out, c.cache)
	return out
}

func (c *Collector) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]tasks.Record, 0, len(c.cache))
	for _, r := range c.cache {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	c.cache = kept
}

func (c *Collector) collectFromQuery(ctx context.Context, opts Options) ([]tasks.Record, bool) {
	if c.querier == nil {
		return nil, false
	}
	query := tasks.NormalizeQuery(opts.Query)
	if query == "" {
		return nil, false
	}
	items, err := c.query(ctx, query)
	if err != nil {
		c.logger.Warn("tasks_query_failed", "error", err.Error())
		return nil, false
	}
	if len(items) == 0 {
		c.logger.Debug("tasks_query_empty", "query", query)
		return nil, false
	}

	filter := opts.filter()
	records := make([]tasks.Record, 0, len(items))
	for _, item := range items {
		if item.Completed() {
			continue
		}
		rec := item.Record()
		if !item.MatchesTag(rec, filter) {
			continue
		}
		records = append(records, rec)
	}
	if opts.TaggingMode == settings.TagAlways {
		if err := c.persistTaskIDs(ctx, records); err != nil {
			c.logger.Warn("task_id_persist_failed", "error", err.Error())
		}
	}
	return records, true
}

// query tries the plain string form first, then the {query} object form
// that some engine versions expect.
func (c *Collector) query(ctx context.Context, query string) ([]tasks.Item, error) {
	result, err := c.querier.Query(ctx, query)
	if err == nil {
		if items := tasks.NormalizeQueryResult(result); len(items) > 0 {
			return items, nil
		}
	}
	result, objErr := c.querier.Query(ctx, tasksapi.QueryObject(query))
	if objErr != nil {
		if err != nil {
			return nil, errors.Join(err, objErr)
		}
		return nil, objErr
	}
	return tasks.NormalizeQueryResult(result), nil
}

func (c *Collector) scanVault(ctx context.Context, opts Options) ([]tasks.Record, error) {
	files, err := c.vault.ListMarkdownFiles()
	if err != nil {
		return nil, err
	}
	filter := opts.filter()
	tag := opts.TaggingMode == settings.TagAlways
	var records []tasks.Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := c.vault.Read(path)
		if err != nil {
			c.logger.Warn("vault_read_failed", "path", path, "error", err.Error())
			continue
		}
		if markdown.Ignored(content) {
			continue
		}
		lines := strings.Split(content, "\n")
		changed := 0
		for i, line := range lines {
			rec, ok := tasks.FromLine(path, i, line)
			if !ok {
				continue
			}
			if filter != nil && !filter.Match(rec.Raw) && !filter.Match(rec.Text) {
				continue
			}
			if tag {
				if _, stored := marker.StoredTaskID(line); !stored {
					lines[i] = marker.EnsureTaskID(line, rec.ID)
					rec.Raw = lines[i]
					changed++
				}
			}
			records = append(records, rec)
		}
		if changed > 0 {
			if err := c.vault.Write(path, strings.Join(lines, "\n")); err != nil {
				c.logger.Warn("task_id_persist_failed", "path", path, "error", err.Error())
				continue
			}
			c.logger.Debug("task_ids_tagged", "path", path, "count", changed)
		}
	}
	return records, nil
}

// persistTaskIDs writes #taskid markers for query results that report a
// location. Files are rewritten at most once each.
func (c *Collector) persistTaskIDs(ctx context.Context, records []tasks.Record) error {
	byPath := make(map[string][]tasks.Record)
	var order []string
	for _, rec := range records {
		if rec.Path == "" {
			continue
		}
		if _, stored := marker.StoredTaskID(rec.Source()); stored {
			continue
		}
		if _, seen := byPath[rec.Path]; !seen {
			order = append(order, rec.Path)
		}
		byPath[rec.Path] = append(byPath[rec.Path], rec)
	}
	var errs []error
	for _, path := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.editLines(path, func(lines []string) (bool, error) {
			changed := false
			for _, rec := range byPath[path] {
				idx, ok := locate(lines, rec, true)
				if !ok {
					continue
				}
				if _, stored := marker.StoredTaskID(lines[idx]); stored {
					continue
				}
				lines[idx] = marker.EnsureTaskID(lines[idx], rec.ID)
				changed = true
			}
			return changed, nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// editLines rewrites path when fn reports a change.
func (c *Collector) editLines(path string, fn func(lines []string) (bool, error)) error {
	content, err := c.vault.Read(path)
	if err != nil {
		return err
	}
	lines := strings.Split(content, "\n")
	changed, err := fn(lines)
	if err != nil || !changed {
		return err
	}
	if err := c.vault.Write(path, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// locate finds rec in lines: the recorded line, the line before it (for
// one-based sources), then the first matching line anywhere.
func locate(lines []string, rec tasks.Record, requireUnchecked bool) (int, bool) {
	if rec.HasLine() {
		for _, idx := range []int{rec.Line, rec.Line - 1} {
			if idx >= 0 && idx < len(lines) && tasks.MatchesLine(lines[idx], rec, requireUnchecked) {
				return idx, true
			}
		}
	}
	for i, line := range lines {
		if tasks.MatchesLine(line, rec, requireUnchecked) {
			return i, true
		}
	}
	return 0, false
}
