// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// MockSink implements the render sink interface for testing. It records
// every frame it is handed and is safe for concurrent use.
type MockSink struct {
	mu     sync.Mutex
	frames [][]float64
	closed bool
	Err    error
}

// Render stores a copy of the frame for later inspection.
func (m *MockSink) Render(bars []float64) error {
	frame := make([]float64, len(bars))
	copy(frame, bars)

	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()
	return m.Err
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Frames returns the frames received so far.
func (m *MockSink) Frames() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float64, len(m.frames))
	copy(out, m.frames)
	return out
}

// LastFrame returns the most recent frame, or nil.
func (m *MockSink) LastFrame() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

// Closed reports whether Close was called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at 90% of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []int16 {
	return GenerateSineWaveAmplitude(size, sampleRate, frequency, math.MaxInt16*0.9)
}

// GenerateSineWaveAmplitude returns a sine with the given peak amplitude in
// sample units.
func GenerateSineWaveAmplitude(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Round(math.Sin(2*math.Pi*frequency*t) * amplitude))
	}
	return buffer
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
func ArgMax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	return FindPeakBin(values, 0, len(values)-1)
}

func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
