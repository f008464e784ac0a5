package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Clock abstracts the wall clock so the schedule gate can run against a
// synchronized or fake time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ParseScheduleTime parses user-entered schedule strings. Supported formats:
//   - "2006-01-02 15:04:05"  (local time)
//   - "2006-01-02 15:04"     (local time)
//   - RFC3339, e.g. "2026-01-15T16:00:00Z"
//
// Bare formats are interpreted in local time since the gate compares against
// the local wall clock.
func ParseScheduleTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty schedule time")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid schedule time %q, use YYYY-MM-DD HH:MM:SS", s)
}

// waitTick picks the re-check interval from the remaining wait, so a long
// wait doesn't burn CPU and a short one still fires promptly.
func waitTick(remaining, floor time.Duration) time.Duration {
	switch {
	case remaining > time.Minute:
		return 30 * time.Second
	case remaining > 10*time.Second:
		return 5 * time.Second
	default:
		if floor > 0 && floor < time.Second {
			return floor
		}
		return time.Second
	}
}

// WaitUntil blocks until clock reaches target, re-checking periodically so
// cancellation takes effect within one tick. A zero or already-past target
// returns immediately.
func WaitUntil(ctx context.Context, clock Clock, target time.Time, floor time.Duration) error {
	if target.IsZero() {
		return nil
	}

	for {
		remaining := target.Sub(clock.Now())
		if remaining <= 0 {
			return nil
		}

		tick := waitTick(remaining, floor)
		if tick > remaining {
			tick = remaining
		}

		timer := time.NewTimer(tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
