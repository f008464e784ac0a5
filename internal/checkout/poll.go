package checkout

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout reports that a bounded poll ran out its deadline without
// the condition becoming true.
var ErrPollTimeout = errors.New("poll timed out")

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a condition error as final: Poll stops retrying and
// returns it immediately instead of waiting out the deadline.
func Permanent(err error) error { return permanentError{err: err} }

// Poll evaluates cond at a fixed interval until it returns true, the timeout
// elapses, or ctx is canceled. A non-nil error from cond is transient and
// retried like a false result unless wrapped with Permanent.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func() (bool, error)) error {
	deadline := time.Now().Add(timeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ok, err := cond()
		if err == nil && ok {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err != nil {
				return errors.Join(ErrPollTimeout, err)
			}
			return ErrPollTimeout
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
