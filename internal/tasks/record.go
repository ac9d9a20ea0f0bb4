// Package tasks turns markdown checkbox lines and loosely shaped task-query
// results into canonical Records.
package tasks

import (
	"sort"
	"strings"
	"time"

	"github.com/quailyquaily/tasknotify/internal/marker"
)

const (
	ShortIDLen  = 8
	NoLine      = -1
	UnnamedTask = "(unnamed task)"
)

// Record is the canonical projection of one open task. It is rebuilt on every
// collection pass; ID stays stable through the #taskid marker or the
// content+location hash.
type Record struct {
	ID      string
	ShortID string
	Text    string
	// Path is vault-relative and empty when the source did not report one.
	Path string
	// Line is zero-based, NoLine when unknown.
	Line       int
	Raw        string
	Priority   int
	Due        time.Time
	DueHasTime bool
	Reminders  []marker.Interval
}

func (r Record) HasLine() bool { return r.Line >= 0 }

func (r Record) HasDue() bool { return !r.Due.IsZero() }

// DueMs returns the due instant in epoch milliseconds, or 0 when unset.
func (r Record) DueMs() int64 {
	if !r.HasDue() {
		return 0
	}
	return r.Due.UnixMilli()
}

// Source returns the raw line when known, else the display text.
func (r Record) Source() string {
	if r.Raw != "" {
		return r.Raw
	}
	return r.Text
}

// Shared reports whether the task is visible to guest chats.
func (r Record) Shared() bool {
	return marker.IsShared(r.Raw) || marker.IsShared(r.Text)
}

func (r Record) Recurrence() (marker.Interval, bool) {
	return marker.Recurrence(r.Source())
}

// MatchesID reports whether id equals the full id or the short id.
func (r Record) MatchesID(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return false
	}
	return r.ID == id || r.ShortID == id
}

// DisplayText strips the id marker and, when set, the filter tag.
func (r Record) DisplayText(filter *marker.TagPattern) string {
	text := marker.StripTaskID(r.Text)
	if filter == nil {
		return text
	}
	return filter.Strip(text)
}

func shortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// Sort orders records by priority descending, then due ascending with
// missing dues last, then discovery order.
func Sort(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.HasDue() != b.HasDue() {
			return a.HasDue()
		}
		if a.HasDue() && !a.Due.Equal(b.Due) {
			return a.Due.Before(b.Due)
		}
		return false
	})
	return out
}

// FindByID returns the first record whose id or short id matches.
func FindByID(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.MatchesID(id) {
			return r, true
		}
	}
	return Record{}, false
}
