// SPDX-License-Identifier: MIT
/*
Package audio produces fixed-length blocks of 16-bit PCM samples for the
analysis loop.

Sources:
- Live capture from a PortAudio input device
- File replay of WAV, MP3 and Ogg Vorbis files, paced in real time
- A synthetic tone generator

Every source hands out one channel of audio in blocks of exactly the
configured length. A source is read from a single goroutine.
*/
package audio

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source yields PCM blocks. The slice returned by ReadBlock is reused by the
// next call. Close releases the underlying resources and is idempotent.
type Source interface {
	ReadBlock(ctx context.Context) ([]int16, error)
	Close() error
}

// Options describes the block stream requested from Open.
type Options struct {
	// Input is empty for live capture, "tone:<hz>" for a synthetic sine or
	// a path to an audio file.
	Input       string
	SampleRate  float64
	Channels    int
	Channel     Channel
	BlockLength int
	Device      DeviceSelector
	LowLatency  bool
	ReadTimeout time.Duration // 0 blocks until a full block is available.
	Loop        bool          // Restart file replay at end of file.
	// GateThreshold is the peak level in 0..1 of full scale below which a
	// block is replaced by silence. 0 disables the gate.
	GateThreshold float64
}

// Validate checks the numeric parameters.
func (o Options) Validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", o.SampleRate)
	}
	if o.Channels < 1 {
		return fmt.Errorf("channel count must be positive, got %d", o.Channels)
	}
	if o.BlockLength < 2 {
		return fmt.Errorf("block length must be at least 2 frames, got %d", o.BlockLength)
	}
	if o.GateThreshold < 0 || o.GateThreshold > 1 {
		return fmt.Errorf("gate threshold must be within 0..1, got %f", o.GateThreshold)
	}
	return nil
}

// BlockLength returns the number of frames in a block of duration d.
func BlockLength(sampleRate float64, d time.Duration) int {
	return int(math.Round(sampleRate * d.Seconds()))
}

// Open creates the source described by opts, wrapped in a noise gate when a
// threshold is set.
func Open(opts Options) (Source, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		src Source
		err error
	)
	switch {
	case opts.Input == "":
		src, err = OpenCapture(opts)
	case strings.HasPrefix(opts.Input, tonePrefix):
		var freq float64
		freq, err = strconv.ParseFloat(strings.TrimPrefix(opts.Input, tonePrefix), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tone frequency in '%s': %w", opts.Input, err)
		}
		src, err = NewToneSource(freq, opts.SampleRate, opts.BlockLength, true)
	default:
		src, err = OpenFile(opts.Input, opts)
	}
	if err != nil {
		return nil, err
	}

	if opts.GateThreshold > 0 {
		src = NewGate(src, opts.GateThreshold)
	}
	return src, nil
}
