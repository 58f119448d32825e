// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
)

const (
	tonePrefix    = "tone:"
	toneAmplitude = 0.5 * math.MaxInt16
)

// ToneSource generates a continuous sine wave. Phase carries over between
// blocks, so consecutive blocks join without discontinuities.
type ToneSource struct {
	frequency  float64
	sampleRate float64
	phase      float64
	block      []int16
	pacer      *pacer
	closed     atomic.Bool
}

// Compile-time check for interface implementation.
var _ Source = (*ToneSource)(nil)

// NewToneSource creates a sine generator. When paced is set, ReadBlock
// releases one block per block duration.
func NewToneSource(frequency, sampleRate float64, blockLength int, paced bool) (*ToneSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if frequency <= 0 || frequency > sampleRate/2 {
		return nil, fmt.Errorf("tone frequency must be within (0, %.0f] Hz, got %f", sampleRate/2, frequency)
	}
	if blockLength < 1 {
		return nil, fmt.Errorf("block length must be positive, got %d", blockLength)
	}
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		block:      make([]int16, blockLength),
		pacer:      newPacer(blockLength, sampleRate, paced),
	}, nil
}

// Frequency returns the tone frequency in Hz.
func (t *ToneSource) Frequency() float64 { return t.frequency }

func (t *ToneSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := t.pacer.wait(ctx); err != nil {
		return nil, err
	}

	step := 2 * math.Pi * t.frequency / t.sampleRate
	for i := range t.block {
		t.block[i] = int16(math.Round(math.Sin(t.phase) * toneAmplitude))
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return t.block, nil
}

func (t *ToneSource) Close() error {
	t.closed.Store(true)
	return nil
}
