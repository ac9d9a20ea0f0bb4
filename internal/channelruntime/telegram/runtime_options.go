package telegram

import "time"

const (
	defaultSweepInterval   = 60 * time.Second
	defaultDigestTick      = time.Minute
	defaultStartupAttempts = 4
	defaultStartupDelay    = 1500 * time.Millisecond
)

type RunOptions struct {
	// SweepInterval is the recurrence sweep cadence.
	SweepInterval time.Duration
	// DigestTick is how often the digest gate is evaluated; the digest
	// itself still waits for the configured notification interval.
	DigestTick      time.Duration
	StartupAttempts int
	StartupDelay    time.Duration
	// DetectChat runs chat-id detection on start when no host chat is set.
	DetectChat bool
}

type runtimeLoopOptions struct {
	SweepInterval    time.Duration
	SweepMinInterval time.Duration
	DigestTick       time.Duration
	StartupAttempts  int
	StartupDelay     time.Duration
	DetectChat       bool
}

func resolveRuntimeLoopOptionsFromRunOptions(opts RunOptions) runtimeLoopOptions {
	return normalizeRuntimeLoopOptions(runtimeLoopOptions{
		SweepInterval:   opts.SweepInterval,
		DigestTick:      opts.DigestTick,
		StartupAttempts: opts.StartupAttempts,
		StartupDelay:    opts.StartupDelay,
		DetectChat:      opts.DetectChat,
	})
}

func normalizeRuntimeLoopOptions(opts runtimeLoopOptions) runtimeLoopOptions {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.SweepMinInterval <= 0 {
		opts.SweepMinInterval = opts.SweepInterval / 2
	}
	if opts.DigestTick <= 0 {
		opts.DigestTick = defaultDigestTick
	}
	if opts.StartupAttempts <= 0 {
		opts.StartupAttempts = defaultStartupAttempts
	}
	if opts.StartupDelay < 0 {
		opts.StartupDelay = 0
	} else if opts.StartupDelay == 0 {
		opts.StartupDelay = defaultStartupDelay
	}
	return opts
}
