package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	state := &State{}
	now := time.Now()
	if ok, _ := state.Start(now); !ok {
		t.Fatalf("Start() = false on idle state")
	}
	result := Tick(context.Background(), "sweep", state, now, func(context.Context) error {
		t.Fatalf("job ran while another run was in flight")
		return nil
	})
	if result.Outcome != TickSkipped || result.SkipReason != SkipAlreadyRunning {
		t.Fatalf("Tick() = %+v, want skipped/%s", result, SkipAlreadyRunning)
	}
}

func TestTickHonorsMinInterval(t *testing.T) {
	t.Parallel()

	state := &State{MinInterval: time.Minute}
	now := time.Now()
	runs := 0
	job := func(context.Context) error { runs++; return nil }

	if r := Tick(context.Background(), "sweep", state, now, job); r.Outcome != TickRan {
		t.Fatalf("first Tick() = %+v", r)
	}
	if r := Tick(context.Background(), "sweep", state, now.Add(30*time.Second), job); r.SkipReason != SkipMinInterval {
		t.Fatalf("second Tick() = %+v, want %s", r, SkipMinInterval)
	}
	if r := Tick(context.Background(), "sweep", state, now.Add(61*time.Second), job); r.Outcome != TickRan {
		t.Fatalf("third Tick() = %+v", r)
	}
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestTickAlertsAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	state := &State{}
	boom := errors.New("boom")
	var last TickResult
	for i := 0; i < failureAlertThreshold; i++ {
		last = Tick(context.Background(), "digest", state, time.Now(), func(context.Context) error { return boom })
	}
	if last.Outcome != TickFailed || last.AlertMessage != "digest_failed (boom)" {
		t.Fatalf("Tick() = %+v, want alert", last)
	}
	next := Tick(context.Background(), "digest", state, time.Now(), func(context.Context) error { return boom })
	if next.Outcome != TickFailed || next.AlertMessage != "" {
		t.Fatalf("Tick() after alert = %+v, want a plain failure", next)
	}
}

func TestEveryStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, nil, "tick", 5*time.Millisecond, nil, func(context.Context) error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Every() did not return after cancel")
	}
	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want >= 3", runs.Load())
	}
}

func TestAfterCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran, err := After(ctx, time.Hour, func(context.Context) error { return nil })
	if ran || !errors.Is(err, context.Canceled) {
		t.Fatalf("After() = (%v, %v), want (false, context.Canceled)", ran, err)
	}
}
