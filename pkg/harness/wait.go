package harness

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const DefaultPollInterval = 50 * time.Millisecond

// ErrWaitTimeout is returned by Poll when the condition did not hold in time.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// Condition reports whether a waited-for state holds. A non-nil error aborts
// the wait.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then every interval until it returns
// true, returns an error, or timeout elapses. It returns the time spent
// waiting. Each evaluation is bounded by the remaining time.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) (time.Duration, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(waitCtx)
		if ok && err == nil {
			return time.Since(start), nil
		}
		if err != nil && waitCtx.Err() == nil {
			return time.Since(start), err
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return time.Since(start), ctx.Err()
			}
			return time.Since(start), ErrWaitTimeout
		case <-ticker.C:
		}
	}
}
