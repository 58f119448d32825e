// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"audiobars/internal/log"
)

var captureLog = log.Named("audio")

const maxAvailablePoll = 5 * time.Millisecond

// CaptureSource reads blocks from a PortAudio input stream using blocking
// reads. It owns the PortAudio session: Close stops the stream and
// terminates PortAudio.
type CaptureSource struct {
	stream      *portaudio.Stream
	device      *portaudio.DeviceInfo
	frames      []int16 // Interleaved stream buffer, blockLength * channels.
	block       []int16 // Selected channel handed to the caller.
	channels    int
	channel     Channel
	readTimeout time.Duration
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// Compile-time check for interface implementation.
var _ Source = (*CaptureSource)(nil)

// OpenCapture initializes PortAudio, selects the input device and starts a
// blocking input stream. Failures wrap ErrDeviceUnavailable.
func OpenCapture(opts Options) (*CaptureSource, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	src, err := openCapture(opts)
	if err != nil {
		_ = Terminate()
		return nil, err
	}
	return src, nil
}

func openCapture(opts Options) (*CaptureSource, error) {
	device, err := InputDevice(opts.Device)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < opts.Channels {
		return nil, fmt.Errorf("%w: device '%s' has %d input channels, %d requested",
			ErrDeviceUnavailable, device.Name, device.MaxInputChannels, opts.Channels)
	}

	var params portaudio.StreamParameters
	if opts.LowLatency {
		params = portaudio.LowLatencyParameters(device, nil)
	} else {
		params = portaudio.HighLatencyParameters(device, nil)
	}
	params.Input.Channels = opts.Channels
	params.Output.Channels = 0
	params.SampleRate = opts.SampleRate
	params.FramesPerBuffer = opts.BlockLength

	frames := make([]int16, opts.BlockLength*opts.Channels)
	stream, err := portaudio.OpenStream(params, frames)
	if err != nil {
		return nil, fmt.Errorf("%w: open '%s' at %.0f Hz: %w", ErrDeviceUnavailable, device.Name, opts.SampleRate, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start '%s': %w", ErrDeviceUnavailable, device.Name, err)
	}

	captureLog.Infof("capturing from '%s' at %.0f Hz, %d channel(s), %d frames per block",
		device.Name, opts.SampleRate, opts.Channels, opts.BlockLength)

	return &CaptureSource{
		stream:      stream,
		device:      device,
		frames:      frames,
		block:       make([]int16, opts.BlockLength),
		channels:    opts.Channels,
		channel:     opts.Channel,
		readTimeout: opts.ReadTimeout,
	}, nil
}

// DeviceName returns the name of the device being captured.
func (c *CaptureSource) DeviceName() string { return c.device.Name }

// ReadBlock blocks until a full block has been captured. Overruns,
// disconnection and read timeouts wrap ErrStreamInterrupted.
func (c *CaptureSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readTimeout > 0 {
		if err := c.waitAvailable(ctx); err != nil {
			return nil, err
		}
	}

	if err := c.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("%w: input overflowed", ErrStreamInterrupted)
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
	}

	ExtractChannel(c.block, c.frames, c.channels, c.channel)
	return c.block, nil
}

// waitAvailable polls the stream until a full block is buffered or the read
// timeout elapses.
func (c *CaptureSource) waitAvailable(ctx context.Context) error {
	need := len(c.block)
	deadline := time.Now().Add(c.readTimeout)
	poll := min(c.readTimeout, maxAvailablePoll)

	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		n, err := c.stream.AvailableToRead()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}
		if n >= need {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no block within %v", ErrStreamInterrupted, c.readTimeout)
		}

		timer.Reset(poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close stops the stream and releases PortAudio. Safe to call repeatedly.
func (c *CaptureSource) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		var errs []error
		if err := c.stream.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := c.stream.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := Terminate(); err != nil {
			errs = append(errs, err)
		}
		c.closeErr = errors.Join(errs...)
		captureLog.Debugf("closed capture from '%s'", c.device.Name)
	})
	return c.closeErr
}
