package retryutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPolicyDelay(t *testing.T) {
	t.Parallel()

	p := Policy{Retries: 2, Base: 750 * time.Millisecond}
	want := []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), nil, "send", Policy{Retries: 2, Base: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), nil, "send", Policy{Retries: 5, Base: time.Millisecond}, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: bad request", ErrPermanent)
	})
	if !errors.Is(err, ErrPermanent) || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want permanent after 1", err, calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), nil, "send", Policy{Retries: 2, Base: time.Millisecond}, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("Do() = %v after %d calls, want boom after 3", err, calls)
	}
}

func TestPollBackoffBounds(t *testing.T) {
	t.Parallel()

	for streak := 0; streak < 10; streak++ {
		d := PollBackoff(streak)
		exp := streak
		if exp > 4 {
			exp = 4
		}
		min := time.Second << exp
		if d < min || d > 30*time.Second || d >= min+500*time.Millisecond {
			t.Fatalf("PollBackoff(%d) = %v, want in [%v, %v)", streak, d, min, min+500*time.Millisecond)
		}
	}
}
