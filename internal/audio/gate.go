// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"math"
	"sync/atomic"
)

// Gate wraps a Source and replaces blocks whose peak amplitude does not
// exceed the threshold with silence.
type Gate struct {
	src       Source
	threshold atomic.Int32 // Absolute amplitude threshold (0-32767)
	silence   []int16
	open      bool
}

// Compile-time check for interface implementation.
var _ Source = (*Gate)(nil)

// NewGate wraps src with a gate at threshold (0..1 of full scale).
func NewGate(src Source, threshold float64) *Gate {
	g := &Gate{src: src, open: true}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	g.threshold.Store(int32(threshold * float64(math.MaxInt16)))
}

// Threshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt16)
}

// ReadBlock reads from the wrapped source and applies the gate.
func (g *Gate) ReadBlock(ctx context.Context) ([]int16, error) {
	block, err := g.src.ReadBlock(ctx)
	if err != nil {
		return nil, err
	}

	threshold := g.threshold.Load()
	open := threshold == 0 || PeakAmplitude(block) > threshold
	if open != g.open {
		if open {
			captureLog.Debugf("gate opened")
		} else {
			captureLog.Debugf("gate closed")
		}
		g.open = open
	}
	if open {
		return block, nil
	}

	if cap(g.silence) < len(block) {
		g.silence = make([]int16, len(block))
	}
	g.silence = g.silence[:len(block)]
	return g.silence, nil
}

// Close closes the wrapped source.
func (g *Gate) Close() error { return g.src.Close() }

// PeakAmplitude returns the largest absolute sample value in block.
// Performance Critical (Hot Path):
// - No allocations
// - Branchless abs and max
func PeakAmplitude(block []int16) int32 {
	var maxAmplitude int32
	for i := range block {
		sample := int32(block[i])
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += diff &^ (diff >> 31)
	}
	return maxAmplitude
}
