// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

const rateWindow = 30

// RateMeter averages the instantaneous rate of the last rateWindow cycles.
// It is safe for concurrent use.
type RateMeter struct {
	mu      sync.Mutex
	last    time.Time
	samples [rateWindow]float64
	count   int
	next    int
}

// Tick records a cycle completed at now.
func (m *RateMeter) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.last.IsZero() {
		if dt := now.Sub(m.last).Seconds(); dt > 0 {
			m.samples[m.next] = 1 / dt
			m.next = (m.next + 1) % rateWindow
			if m.count < rateWindow {
				m.count++
			}
		}
	}
	m.last = now
}

// Rate returns the mean rate in cycles per second, 0 before two ticks.
func (m *RateMeter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		return 0
	}
	return floats.Sum(m.samples[:m.count]) / float64(m.count)
}
