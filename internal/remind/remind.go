// Package remind decides which open tasks warrant a reminder and when a
// completed recurring task reopens. It keeps no timers; callers pass the last
// check time and the current time on every tick.
package remind

import (
	"time"

	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/tasks"
)

const (
	ReasonReminder    = "reminder"
	ReasonOverdue     = "overdue_hourly"
	ReasonOverdueDate = "overdue_date"
)

var unitDurations = map[marker.Unit]time.Duration{
	marker.UnitMinute: time.Minute,
	marker.UnitHour:   time.Hour,
	marker.UnitDay:    24 * time.Hour,
	marker.UnitWeek:   7 * 24 * time.Hour,
}

// FromMillis converts a persisted epoch-ms timestamp; values <= 0 mean never.
func FromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// AddCalendarMonths shifts t by months calendar months in t's location,
// clamping the day to the target month's length and keeping the clock time.
func AddCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	index := int(month) - 1 + months
	yearDelta := index / 12
	if index < 0 && index%12 != 0 {
		yearDelta--
	}
	targetYear := year + yearDelta
	targetMonth := time.Month(((index%12)+12)%12 + 1)
	maxDay := daysIn(targetYear, targetMonth, t.Location())
	if day > maxDay {
		day = maxDay
	}
	hour, minute, sec := t.Clock()
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// TriggerTime is the instant a reminder of iv before due fires.
func TriggerTime(due time.Time, iv marker.Interval) time.Time {
	if iv.Unit == marker.UnitMonth {
		return AddCalendarMonths(due, -iv.Value)
	}
	return due.Add(-time.Duration(iv.Value) * unitDurations[iv.Unit])
}

// NextOccurrence is when a recurring task completed at completedAt reopens.
func NextOccurrence(completedAt time.Time, iv marker.Interval) time.Time {
	if iv.Unit == marker.UnitMonth {
		return AddCalendarMonths(completedAt, iv.Value)
	}
	return completedAt.Add(time.Duration(iv.Value) * unitDurations[iv.Unit])
}

// RecurrenceDue reports whether the task should reopen at now.
func RecurrenceDue(completedAt time.Time, iv marker.Interval, now time.Time) bool {
	return !now.Before(NextOccurrence(completedAt, iv))
}

// Crossed reports whether trigger fell in (lastChecked, now]. A zero
// lastChecked is a first run and counts every past trigger.
func Crossed(lastChecked, now, trigger time.Time) bool {
	if trigger.After(now) {
		return false
	}
	return lastChecked.IsZero() || lastChecked.Before(trigger)
}

// HourlyOverdue fires once per whole hour elapsed past a timed due.
func HourlyOverdue(rec tasks.Record, lastChecked, now time.Time) bool {
	if !rec.HasDue() || !rec.DueHasTime || now.Before(rec.Due) {
		return false
	}
	if lastChecked.IsZero() || lastChecked.Before(rec.Due) {
		return true
	}
	return bucket(rec.Due, now) > bucket(rec.Due, lastChecked)
}

func bucket(due, at time.Time) int64 {
	return int64(at.Sub(due) / time.Hour)
}

// OverdueWithoutTime reports a date-only task that is past due and has
// explicit reminders. It is listed on every sweep until completed.
func OverdueWithoutTime(rec tasks.Record, now time.Time) bool {
	if !rec.HasDue() || rec.DueHasTime || len(rec.Reminders) == 0 {
		return false
	}
	return now.After(rec.Due)
}

// Evaluate returns the reason rec belongs in a reminder sweep covering
// (lastChecked, now], or "" when it does not.
func Evaluate(rec tasks.Record, lastChecked, now time.Time) string {
	if rec.HasDue() {
		for _, iv := range rec.Reminders {
			if iv.SubDay() && !rec.DueHasTime {
				continue
			}
			if Crossed(lastChecked, now, TriggerTime(rec.Due, iv)) {
				return ReasonReminder
			}
		}
	}
	if HourlyOverdue(rec, lastChecked, now) {
		return ReasonOverdue
	}
	if OverdueWithoutTime(rec, now) {
		return ReasonOverdueDate
	}
	return ""
}

// Due is a record selected by a sweep together with its reason.
type Due struct {
	Record tasks.Record
	Reason string
}

// Select keeps the records that Evaluate admits, preserving order.
func Select(records []tasks.Record, lastChecked, now time.Time) []Due {
	var out []Due
	for _, rec := range records {
		if reason := Evaluate(rec, lastChecked, now); reason != "" {
			out = append(out, Due{Record: rec, Reason: reason})
		}
	}
	return out
}

// DigestDue gates the periodic digest: interval must have elapsed since the
// later of the last check and the last send.
func DigestDue(lastCheck, lastSent, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	last := lastCheck
	if lastSent.After(last) {
		last = lastSent
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}
