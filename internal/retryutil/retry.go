package retryutil

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	pollBackoffBase   = time.Second
	pollBackoffCap    = 30 * time.Second
	pollBackoffJitter = 500 * time.Millisecond
	pollBackoffMaxExp = 4
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("retryutil: permanent failure")

// Policy retries a call up to Retries additional times, waiting
// Base*2^attempt between tries.
type Policy struct {
	Retries int
	Base    time.Duration
}

// Delay returns the wait before retry number attempt (zero-based).
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 || attempt < 0 {
		return 0
	}
	return p.Base << attempt
}

// Do runs fn until it succeeds, the retries are exhausted, ctx ends or fn
// returns an error wrapping ErrPermanent.
func Do(ctx context.Context, logger *slog.Logger, name string, p Policy, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || errors.Is(err, ErrPermanent) || attempt >= p.Retries {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
		delay := p.Delay(attempt)
		if logger != nil {
			logger.Debug(name+"_retry_scheduled", "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// PollBackoff is the wait after streak consecutive poll failures:
// 1s*2^min(streak,4) plus up to 500ms jitter, capped at 30s.
func PollBackoff(streak int) time.Duration {
	if streak < 0 {
		streak = 0
	}
	if streak > pollBackoffMaxExp {
		streak = pollBackoffMaxExp
	}
	d := pollBackoffBase<<streak + rand.N(pollBackoffJitter)
	if d > pollBackoffCap {
		d = pollBackoffCap
	}
	return d
}
