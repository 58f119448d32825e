// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// FileSource replays a WAV, MP3 or Ogg Vorbis file as a block stream. The
// file must already be at the capture sample rate. The last partial block is
// zero-padded; after it ReadBlock returns io.EOF unless looping is enabled,
// in which case the file is reopened and replay starts over.
type FileSource struct {
	path        string
	channel     Channel
	loop        bool
	file        *os.File
	dec         pcmDecoder
	chans       int
	interleaved []int16
	block       []int16
	pacer       *pacer
	done        bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// Compile-time check for interface implementation.
var _ Source = (*FileSource)(nil)

// OpenFile opens path for replay using opts' sample rate, block length,
// channel selection and loop flag. Replay is paced to real time.
func OpenFile(path string, opts Options) (*FileSource, error) {
	return openFile(path, opts, true)
}

func openFile(path string, opts Options, paced bool) (*FileSource, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &FileSource{
		path:    path,
		channel: opts.Channel,
		loop:    opts.Loop,
		block:   make([]int16, opts.BlockLength),
		pacer:   newPacer(opts.BlockLength, opts.SampleRate, paced),
	}
	if err := s.open(); err != nil {
		return nil, err
	}

	if rate := s.dec.sampleRate(); float64(rate) != opts.SampleRate {
		s.file.Close()
		return nil, fmt.Errorf("%w: '%s' is %d Hz, capture rate is %.0f Hz",
			ErrSampleRateMismatch, path, rate, opts.SampleRate)
	}

	s.interleaved = make([]int16, opts.BlockLength*s.chans)
	captureLog.Infof("replaying '%s' at %d Hz, %d channel(s)", path, s.dec.sampleRate(), s.chans)
	return s, nil
}

func (s *FileSource) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	dec, err := newDecoder(s.path, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("'%s': %w", s.path, err)
	}
	if dec.channels() < 1 {
		f.Close()
		return fmt.Errorf("%w: '%s' reports %d channels", ErrUnsupportedFormat, s.path, dec.channels())
	}
	if s.chans != 0 && dec.channels() != s.chans {
		f.Close()
		return fmt.Errorf("%w: '%s' changed channel count", ErrUnsupportedFormat, s.path)
	}

	s.file = f
	s.dec = dec
	s.chans = dec.channels()
	return nil
}

// rewind reopens the file from the start.
func (s *FileSource) rewind() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	return s.open()
}

// Channels returns the channel count of the file.
func (s *FileSource) Channels() int { return s.chans }

func (s *FileSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if s.done {
		return nil, io.EOF
	}
	if err := s.pacer.wait(ctx); err != nil {
		return nil, err
	}

	filled := 0
	rewound := false
	for filled < len(s.interleaved) {
		n, err := s.dec.read(s.interleaved[filled:])
		filled += n
		if err == nil {
			if n == 0 {
				// Decoder made no progress without reporting an error.
				err = io.EOF
			} else {
				continue
			}
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: decoding '%s': %w", ErrStreamInterrupted, s.path, err)
		}

		// An empty file would rewind forever.
		if !s.loop || (rewound && n == 0 && filled == 0) {
			break
		}
		if err := s.rewind(); err != nil {
			return nil, fmt.Errorf("%w: reopening '%s': %w", ErrStreamInterrupted, s.path, err)
		}
		rewound = true
	}

	if filled == 0 {
		s.done = true
		return nil, io.EOF
	}
	clear(s.interleaved[filled:])
	if filled < len(s.interleaved) {
		s.done = true
	}

	ExtractChannel(s.block, s.interleaved, s.chans, s.channel)
	return s.block, nil
}

// Close closes the file. Safe to call repeatedly.
func (s *FileSource) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}
