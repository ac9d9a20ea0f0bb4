// Package schedule runs periodic jobs with overlap protection.
package schedule

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const failureAlertThreshold = 3

const (
	SkipAlreadyRunning = "already_running"
	SkipMinInterval    = "min_interval"
)

// State guards one job: at most one run in flight, and optionally a minimum
// spacing between run starts regardless of how often the job is triggered.
type State struct {
	MinInterval time.Duration

	mu        sync.Mutex
	running   bool
	lastStart time.Time
	failures  int
	lastError string
}

// Start claims the job. It returns a skip reason when the job is already
// running or started less than MinInterval ago.
func (s *State) Start(now time.Time) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, SkipAlreadyRunning
	}
	if s.MinInterval > 0 && !s.lastStart.IsZero() && now.Sub(s.lastStart) < s.MinInterval {
		return false, SkipMinInterval
	}
	s.running = true
	s.lastStart = now
	return true, ""
}

func (s *State) EndSuccess() {
	s.mu.Lock()
	s.running = false
	s.failures = 0
	s.lastError = ""
	s.mu.Unlock()
}

// EndFailure releases the job and returns an alert once consecutive failures
// reach the threshold.
func (s *State) EndFailure(name string, err error) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.failures++
	if err != nil {
		s.lastError = strings.TrimSpace(err.Error())
	}
	if s.failures < failureAlertThreshold {
		return false, ""
	}
	s.failures = 0
	msg := name + "_failed"
	if s.lastError != "" {
		msg = fmt.Sprintf("%s_failed (%s)", name, s.lastError)
	}
	return true, msg
}
