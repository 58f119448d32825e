// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiobars/internal/analysis"
	"audiobars/internal/audio"
	"audiobars/pkg/utils"
)

const (
	testRate  = 48000.0
	testBlock = 2400
)

// fakeSource calls read with the 1-based read count.
type fakeSource struct {
	read   func(ctx context.Context, n int) ([]int16, error)
	reads  atomic.Int64
	closed atomic.Bool
}

func (f *fakeSource) ReadBlock(ctx context.Context) ([]int16, error) {
	return f.read(ctx, int(f.reads.Add(1)))
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

// paced waits d, honouring ctx.
func paced(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func toneSource(t *testing.T, freq float64) *fakeSource {
	t.Helper()
	tone, err := audio.NewToneSource(freq, testRate, testBlock, false)
	require.NoError(t, err)
	return &fakeSource{read: func(ctx context.Context, _ int) ([]int16, error) {
		if err := paced(ctx, time.Millisecond); err != nil {
			return nil, err
		}
		return tone.ReadBlock(ctx)
	}}
}

func newTestDriver(t *testing.T, src audio.Source, sink Sink, cfg Config) *Driver {
	t.Helper()
	tr, err := analysis.NewTransformer(testBlock, testRate, analysis.BackendGonum, analysis.Rectangular)
	require.NoError(t, err)
	d, err := New(src, tr, sink, cfg)
	require.NoError(t, err)
	return d
}

func runFor(t *testing.T, d *Driver, timeout time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.Run(ctx)
}

func TestDriverZeroBlocks(t *testing.T) {
	zero := make([]int16, testBlock)
	src := &fakeSource{read: func(ctx context.Context, n int) ([]int16, error) {
		if n > 100 {
			return nil, io.EOF
		}
		if err := paced(ctx, time.Millisecond); err != nil {
			return nil, err
		}
		return zero, nil
	}}
	sink := &utils.MockSink{}
	d := newTestDriver(t, src, sink, Config{Bars: 25, Profile: analysis.Tuned, RenderInterval: 2 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver stalled on zero blocks")
	}

	assert.True(t, src.closed.Load(), "source closed on exit")
	assert.Equal(t, uint64(100), d.Stats().Published)

	frames := sink.Frames()
	require.NotEmpty(t, frames)
	for _, frame := range frames {
		assert.LessOrEqual(t, len(frame), 25)
		for _, v := range frame {
			require.Zero(t, v)
		}
	}
}

func TestDriverSinePeak(t *testing.T) {
	// Classic assumes 20Hz per half-spectrum index, exactly 48kHz/2400.
	const freq = 1000.0
	sink := &utils.MockSink{}
	d := newTestDriver(t, toneSource(t, freq), sink, Config{Bars: 25, Profile: analysis.Classic, RenderInterval: 5 * time.Millisecond})

	require.NoError(t, runFor(t, d, 200*time.Millisecond))

	latest := d.Latest()
	require.NotNil(t, latest)
	require.Len(t, latest.Bars, 30)

	r, err := analysis.Classic.NewReducer(25)
	require.NoError(t, err)
	want := r.Table().BucketFor(int(freq / analysis.Classic.HzStep))
	require.NotEqual(t, -1, want)
	assert.Equal(t, want, utils.ArgMax(latest.Bars))

	// The valid convolution shifts bar b to output index b-(degree-1).
	frame := sink.LastFrame()
	require.Len(t, frame, 25)
	assert.Equal(t, want-(analysis.Classic.Smoother.Degree-1), utils.ArgMax(frame))
}

func TestDriverSetBars(t *testing.T) {
	sink := &utils.MockSink{}
	d := newTestDriver(t, toneSource(t, 440), sink, Config{Bars: 25, Profile: analysis.Classic, RenderInterval: 2 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Latest() != nil }, 2*time.Second, time.Millisecond)

	require.NoError(t, d.SetBars(40))
	assert.Equal(t, 40, d.Bars())
	require.Eventually(t, func() bool {
		f := d.Latest()
		return f != nil && len(f.Bars) == 45
	}, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(sink.LastFrame()) == 40 }, 2*time.Second, time.Millisecond)

	assert.Error(t, d.SetBars(0))
	assert.Equal(t, 40, d.Bars())

	cancel()
	require.NoError(t, <-done)
}

func TestDriverRetriesInterruptedReads(t *testing.T) {
	zero := make([]int16, testBlock)
	src := &fakeSource{read: func(ctx context.Context, n int) ([]int16, error) {
		if n <= 3 {
			return nil, audio.ErrStreamInterrupted
		}
		if err := paced(ctx, time.Millisecond); err != nil {
			return nil, err
		}
		return zero, nil
	}}
	d := newTestDriver(t, src, &utils.MockSink{}, Config{
		Bars:    10,
		Profile: analysis.Tuned,
		Retry:   RetryPolicy{Backoff: time.Millisecond},
	})

	require.NoError(t, runFor(t, d, 100*time.Millisecond))
	assert.NotNil(t, d.Latest())
	assert.Greater(t, src.reads.Load(), int64(4))
}

func TestDriverRetryCap(t *testing.T) {
	src := &fakeSource{read: func(ctx context.Context, n int) ([]int16, error) {
		return nil, audio.ErrStreamInterrupted
	}}
	d := newTestDriver(t, src, &utils.MockSink{}, Config{
		Bars:    10,
		Profile: analysis.Tuned,
		Retry:   RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	})

	err := runFor(t, d, 2*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, audio.ErrStreamInterrupted)
	assert.Equal(t, int64(4), src.reads.Load())
	assert.True(t, src.closed.Load())
}

func TestDriverFatalSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{read: func(ctx context.Context, n int) ([]int16, error) {
		return nil, boom
	}}
	d := newTestDriver(t, src, &utils.MockSink{}, Config{Bars: 10, Profile: analysis.Tuned})

	err := runFor(t, d, 2*time.Second)
	assert.ErrorIs(t, err, boom)
	assert.True(t, src.closed.Load())
}

func TestDriverSinkErrorsDoNotStopRendering(t *testing.T) {
	sink := &utils.MockSink{Err: errors.New("display gone")}
	d := newTestDriver(t, toneSource(t, 440), sink, Config{Bars: 10, Profile: analysis.Tuned, RenderInterval: 2 * time.Millisecond})

	require.NoError(t, runFor(t, d, 100*time.Millisecond))
	assert.Greater(t, len(sink.Frames()), 5)
	assert.Zero(t, d.Stats().Rendered)
}

func TestDriverRunTwice(t *testing.T) {
	d := newTestDriver(t, toneSource(t, 440), &utils.MockSink{}, Config{Bars: 10, Profile: analysis.Tuned})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Latest() != nil }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestRenderTickSkipsMissingBars(t *testing.T) {
	sink := &utils.MockSink{}
	d := newTestDriver(t, &fakeSource{}, sink, Config{Bars: 25, Profile: analysis.Classic})

	d.renderTick()
	assert.Empty(t, sink.Frames(), "nothing rendered before the first vector")

	d.slot.Publish(make([]float64, 10))
	d.renderTick()
	frame := sink.LastFrame()
	assert.Len(t, frame, analysis.OutputLen(10, analysis.Classic.Smoother.Degree))
	assert.Equal(t, uint64(1), d.Stats().Rendered)
}

func TestNewValidation(t *testing.T) {
	tr, err := analysis.NewTransformer(testBlock, testRate, analysis.BackendGonum, analysis.Rectangular)
	require.NoError(t, err)

	_, err = New(nil, tr, &utils.MockSink{}, Config{Bars: 10, Profile: analysis.Tuned})
	assert.Error(t, err)
	_, err = New(&fakeSource{}, tr, nil, Config{Bars: 10, Profile: analysis.Tuned})
	assert.Error(t, err)
	_, err = New(&fakeSource{}, tr, &utils.MockSink{}, Config{Bars: 0, Profile: analysis.Tuned})
	assert.Error(t, err)
	_, err = New(&fakeSource{}, nil, &utils.MockSink{}, Config{Bars: 10, Profile: analysis.Tuned})
	assert.Error(t, err)

	d, err := New(&fakeSource{}, tr, &utils.MockSink{}, Config{Bars: 10, Profile: analysis.Classic})
	require.NoError(t, err)
	assert.Equal(t, analysis.Classic.RenderInterval, d.interval)
}
