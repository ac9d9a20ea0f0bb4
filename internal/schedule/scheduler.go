package schedule

import (
	"context"
	"log/slog"
	"time"
)

type TickOutcome int

const (
	TickRan TickOutcome = iota
	TickSkipped
	TickFailed
)

type TickResult struct {
	Outcome      TickOutcome
	SkipReason   string
	Err          error
	AlertMessage string
}

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

// Tick runs job once under state's guard.
func Tick(ctx context.Context, name string, state *State, now time.Time, job Job) TickResult {
	if state == nil || job == nil {
		return TickResult{Outcome: TickSkipped, SkipReason: "invalid_config"}
	}
	if ok, reason := state.Start(now); !ok {
		return TickResult{Outcome: TickSkipped, SkipReason: reason}
	}
	if err := job(ctx); err != nil {
		result := TickResult{Outcome: TickFailed, Err: err}
		if alert, msg := state.EndFailure(name, err); alert {
			result.AlertMessage = msg
		}
		return result
	}
	state.EndSuccess()
	return TickResult{Outcome: TickRan}
}

// Every runs job every interval until ctx is done. Overlapping runs are
// skipped, never queued.
func Every(ctx context.Context, logger *slog.Logger, name string, interval time.Duration, state *State, job Job) {
	if interval <= 0 || job == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		state = &State{}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := Tick(ctx, name, state, time.Now(), job)
			logTick(logger, name, result)
		}
	}
}

// After runs job once after delay unless ctx ends first. It reports whether
// the job ran.
func After(ctx context.Context, delay time.Duration, job Job) (bool, error) {
	if job == nil {
		return false, nil
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return true, job(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	_, err := After(ctx, d, func(context.Context) error { return nil })
	return err
}

func logTick(logger *slog.Logger, name string, result TickResult) {
	switch result.Outcome {
	case TickSkipped:
		logger.Debug(name+"_skipped", "reason", result.SkipReason)
	case TickFailed:
		logger.Warn(name+"_failed", "error", result.Err)
		if result.AlertMessage != "" {
			logger.Error(name+"_alert", "message", result.AlertMessage)
		}
	}
}
