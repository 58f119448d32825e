// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"time"
)

// pacer releases one block per interval so that synthetic and file sources
// deliver blocks at the rate a device would. A zero interval never waits.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func newPacer(blockLength int, sampleRate float64, paced bool) *pacer {
	if !paced {
		return &pacer{}
	}
	return &pacer{interval: time.Duration(float64(blockLength) / sampleRate * float64(time.Second))}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	now := time.Now()
	if p.next.IsZero() || now.Sub(p.next) > p.interval {
		// First block, or the reader fell behind: restart the schedule.
		p.next = now
	}

	if delay := p.next.Sub(now); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	p.next = p.next.Add(p.interval)
	return nil
}
