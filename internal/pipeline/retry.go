// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted wraps the last read error once the retry cap is hit.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy governs how the analysis loop retries interrupted reads.
type RetryPolicy struct {
	MaxAttempts int           // Consecutive retries allowed, 0 retries forever.
	Backoff     time.Duration // Delay before the first retry, doubled per attempt.
	MaxBackoff  time.Duration // Upper bound for the delay, 0 means no bound.
}

// DefaultRetryPolicy retries forever with a short, bounded backoff.
var DefaultRetryPolicy = RetryPolicy{
	Backoff:    10 * time.Millisecond,
	MaxBackoff: 500 * time.Millisecond,
}

// exhausted reports whether attempt (1-based) exceeds the cap.
func (p RetryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

// delay returns the wait before retry attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff <= 0 || attempt < 1 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// sleepContext waits for d or until ctx is done.
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
