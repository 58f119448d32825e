// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync/atomic"
	"time"
)

// Frame is an immutable snapshot of one analysed bar vector.
type Frame struct {
	Seq  uint64
	At   time.Time
	Bars []float64
}

// Slot holds the most recent Frame. One goroutine publishes, any number
// read. Readers never block the writer and never observe a partially
// written vector: every Publish swaps in a new snapshot.
type Slot struct {
	latest atomic.Pointer[Frame]
	seq    atomic.Uint64
}

// Publish stores a copy of bars as the latest frame and returns its
// sequence number.
func (s *Slot) Publish(bars []float64) uint64 {
	snapshot := make([]float64, len(bars))
	copy(snapshot, bars)

	seq := s.seq.Add(1)
	s.latest.Store(&Frame{Seq: seq, At: time.Now(), Bars: snapshot})
	return seq
}

// Load returns the latest frame without consuming it, or nil before the
// first Publish. The frame must not be modified.
func (s *Slot) Load() *Frame {
	return s.latest.Load()
}
