// SPDX-License-Identifier: MIT
/*
Package pipeline drives block analysis and bar rendering.

Two loops run concurrently under one context:
  - The analysis loop reads blocks from a source, transforms and reduces
    them and publishes each bar vector to a single shared slot.
  - The render loop ticks at a fixed interval, takes whatever vector is in
    the slot, smooths it against recent history and hands the result to a
    sink.

Neither loop waits on the other. Vectors published faster than the render
rate are dropped; a render tick without a new vector smooths the previous
one again.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"audiobars/internal/analysis"
	"audiobars/internal/audio"
	"audiobars/internal/log"
)

var logger = log.Named("pipeline")

// ErrAlreadyRunning is returned when Run is called on a running driver.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Sink receives one smoothed bar sequence per render tick. Render is only
// ever called from the render loop.
type Sink interface {
	Render(bars []float64) error
}

// Config holds the driver parameters.
type Config struct {
	Bars           int
	Profile        analysis.Profile
	RenderInterval time.Duration // 0 uses the profile's interval.
	Retry          RetryPolicy
}

// Stats is a point-in-time view of the driver.
type Stats struct {
	Bars         int
	AnalysisRate float64 // Mean analysis cycles per second.
	Published    uint64  // Vectors published since start.
	Rendered     uint64  // Render ticks that reached the sink.
}

// Driver owns a source for the duration of Run.
type Driver struct {
	source   audio.Source
	analyzer *analysis.Analyzer
	smoother *analysis.Smoother
	sink     Sink
	profile  analysis.Profile
	interval time.Duration
	retry    RetryPolicy

	slot     Slot
	rate     RateMeter
	bars     atomic.Int32
	rendered atomic.Uint64
	running  atomic.Bool

	reconfigure sync.Mutex // Serialises SetBars.
	sinkErrors  int        // Consecutive sink failures, render loop only.
}

// New wires a driver. The transformer's block size must match the blocks
// the source produces.
func New(source audio.Source, transformer *analysis.Transformer, sink Sink, cfg Config) (*Driver, error) {
	if source == nil {
		return nil, fmt.Errorf("pipeline requires a source")
	}
	if sink == nil {
		return nil, fmt.Errorf("pipeline requires a sink")
	}

	reducer, err := cfg.Profile.NewReducer(cfg.Bars)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(transformer, reducer)
	if err != nil {
		return nil, err
	}
	smoother, err := analysis.NewSmoother(cfg.Profile.Smoother)
	if err != nil {
		return nil, err
	}

	interval := cfg.RenderInterval
	if interval <= 0 {
		interval = cfg.Profile.RenderInterval
	}
	if interval <= 0 {
		return nil, fmt.Errorf("render interval must be positive")
	}

	d := &Driver{
		source:   source,
		analyzer: analyzer,
		smoother: smoother,
		sink:     sink,
		profile:  cfg.Profile,
		interval: interval,
		retry:    cfg.Retry,
	}
	d.bars.Store(int32(cfg.Bars))
	return d, nil
}

// Run starts both loops and blocks until ctx is cancelled, the source ends
// or a fatal error occurs. The source is closed before Run returns.
// Cancellation and end of input return nil.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)
	defer func() {
		if err := d.source.Close(); err != nil {
			logger.Warnf("closing source: %v", err)
		}
	}()

	logger.Infof("starting: %d bars, profile %s, render every %v", d.Bars(), d.profile.Name, d.interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.analysisLoop(gctx) })
	g.Go(func() error { return d.renderLoop(gctx) })

	err := g.Wait()
	switch {
	case err == nil, errors.Is(err, io.EOF):
		logger.Infof("stopped: end of input")
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Infof("stopped")
		return nil
	}
	logger.Errorf("stopped: %v", err)
	return err
}

// analysisLoop reads, analyses and publishes until ctx is done.
func (d *Driver) analysisLoop(ctx context.Context) error {
	attempt := 0
	for {
		block, err := d.source.ReadBlock(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !errors.Is(err, audio.ErrStreamInterrupted) {
				return err
			}

			attempt++
			if d.retry.exhausted(attempt) {
				return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt-1, err)
			}
			logger.Warnf("read interrupted (attempt %d): %v", attempt, err)
			if err := sleepContext(ctx, d.retry.delay(attempt)); err != nil {
				return err
			}
			continue
		}
		if attempt > 0 {
			logger.Infof("stream recovered after %d attempts", attempt)
			attempt = 0
		}

		d.slot.Publish(d.analyzer.Process(block))
		d.rate.Tick(time.Now())
	}
}

// renderLoop emits one smoothed frame per tick until ctx is done.
func (d *Driver) renderLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.renderTick()
		}
	}
}

func (d *Driver) renderTick() {
	frame := d.slot.Load()
	if frame == nil {
		return
	}

	d.smoother.Push(frame.Bars)
	out := d.smoother.Smooth()

	n := d.Bars()
	if len(out) < n {
		logger.Debugf("frame %d: %d of %d bars available", frame.Seq, len(out), n)
		n = len(out)
	}

	if err := d.sink.Render(out[:n]); err != nil {
		d.sinkErrors++
		if d.sinkErrors == 1 || d.sinkErrors%100 == 0 {
			logger.Warnf("sink render failed (%d consecutive): %v", d.sinkErrors, err)
		}
		return
	}
	if d.sinkErrors > 0 {
		logger.Infof("sink recovered after %d failures", d.sinkErrors)
		d.sinkErrors = 0
	}
	d.rendered.Add(1)
}

// SetBars rebuilds the bucket table for n visible bars. The next analysed
// vector has n + margin entries. Safe to call while running.
func (d *Driver) SetBars(n int) error {
	d.reconfigure.Lock()
	defer d.reconfigure.Unlock()

	if n == d.Bars() {
		return nil
	}
	reducer, err := d.profile.NewReducer(n)
	if err != nil {
		return err
	}
	d.analyzer.SetReducer(reducer)
	d.bars.Store(int32(n))
	logger.Infof("reconfigured to %d bars", n)
	return nil
}

// Bars returns the number of visible bars.
func (d *Driver) Bars() int { return int(d.bars.Load()) }

// Profile returns the calibration profile in use.
func (d *Driver) Profile() analysis.Profile { return d.profile }

// Latest returns the most recently published frame, or nil.
func (d *Driver) Latest() *Frame { return d.slot.Load() }

// Stats returns current counters.
func (d *Driver) Stats() Stats {
	var published uint64
	if f := d.slot.Load(); f != nil {
		published = f.Seq
	}
	return Stats{
		Bars:         d.Bars(),
		AnalysisRate: d.rate.Rate(),
		Published:    published,
		Rendered:     d.rendered.Load(),
	}
}
