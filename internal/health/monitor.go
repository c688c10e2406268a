// Package health waits for freshly started services to report healthy.
//
// Targets are probed one after another in the order given: the frontend is
// not worth probing until the API answers. Each target has its own attempt
// budget; between failed probes the monitor sleeps for the interval and is
// otherwise idle.
package health

import (
	"context"
	"fmt"
	"time"

	"researchctl/pkg/logging"
)

const subsystem = "Health"

// TimeoutError reports a target that never became healthy within its budget.
type TimeoutError struct {
	Target   string
	Address  string
	Attempts int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s (%s) not healthy after %d attempts: %v", e.Target, e.Address, e.Attempts, e.LastErr)
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// ProbeFunc observes every probe result; used for metrics.
type ProbeFunc func(target string, attempt int, err error)

// Monitor polls targets until healthy or out of attempts.
type Monitor struct {
	Interval    time.Duration
	MaxAttempts int
	OnProbe     ProbeFunc

	sleep func(ctx context.Context, d time.Duration) error
}

// NewMonitor creates a monitor. maxAttempts below 1 is treated as 1.
func NewMonitor(interval time.Duration, maxAttempts int) *Monitor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Monitor{Interval: interval, MaxAttempts: maxAttempts, sleep: sleepContext}
}

// Result records how many probes each target needed.
type Result struct {
	Attempts map[string]int
	Elapsed  time.Duration
}

// AwaitHealthy probes each target in order. It returns a *TimeoutError for the
// first target that exhausts its attempts; later targets are not probed.
// A cancelled ctx ends the wait early with ctx.Err().
func (m *Monitor) AwaitHealthy(ctx context.Context, targets []Target) (*Result, error) {
	start := time.Now()
	res := &Result{Attempts: make(map[string]int, len(targets))}

	for _, t := range targets {
		n, err := m.awaitTarget(ctx, t)
		res.Attempts[t.Name] = n
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		logging.Info(subsystem, "%s is healthy after %d attempt(s)", t.Name, n)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

func (m *Monitor) awaitTarget(ctx context.Context, t Target) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= m.MaxAttempts; attempt++ {
		lastErr = t.Checker.CheckHealth(ctx)
		if m.OnProbe != nil {
			m.OnProbe(t.Name, attempt, lastErr)
		}
		if lastErr == nil {
			return attempt, nil
		}
		logging.Debug(subsystem, "%s probe %d/%d failed: %v", t.Name, attempt, m.MaxAttempts, lastErr)

		if attempt == m.MaxAttempts {
			break
		}
		if err := m.sleep(ctx, m.Interval); err != nil {
			return attempt, err
		}
	}
	return m.MaxAttempts, &TimeoutError{Target: t.Name, Address: t.Address, Attempts: m.MaxAttempts, LastErr: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
