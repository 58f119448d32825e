// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"audiobars/internal/analysis"
	"audiobars/internal/audio"
	"audiobars/internal/config"
	"audiobars/internal/log"
	"audiobars/internal/pipeline"
	"audiobars/internal/transport"
	"audiobars/internal/transport/udp"
	"audiobars/internal/tui"
	"audiobars/pkg/build"
)

var logger = log.Named("main")

// Run builds the pipeline described by cfg and blocks until ctx is
// cancelled, the input ends or the terminal display is closed.
func Run(ctx context.Context, cfg *config.Config) error {
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	opts, err := cfg.SourceOptions()
	if err != nil {
		return err
	}
	backend, err := analysis.ParseBackend(cfg.Analysis.FFTBackend)
	if err != nil {
		return err
	}
	window, err := analysis.ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		return err
	}

	transformer, err := analysis.NewTransformer(opts.BlockLength, opts.SampleRate, backend, window)
	if err != nil {
		return err
	}

	sinks, display, err := openSinks(cfg, profile)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warnf("closing sinks: %v", err)
		}
	}()

	src, err := audio.Open(opts)
	if err != nil {
		return err
	}

	driver, err := pipeline.New(src, transformer, sinks, pipeline.Config{
		Bars:           cfg.Analysis.Bars,
		Profile:        profile,
		RenderInterval: cfg.Render.Interval,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		},
	})
	if err != nil {
		src.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if display != nil {
		restore, err := divertLogs(cfg.LogFile)
		if err != nil {
			return err
		}
		defer restore()

		display.Start(driver)
		go func() {
			select {
			case <-display.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return driver.Run(ctx)
}

// openSinks creates every configured sink. The terminal display, if any, is
// also returned so it can be started once the driver exists.
func openSinks(cfg *config.Config, profile analysis.Profile) (transport.Multi, *tui.BarsSink, error) {
	kinds, err := transport.ParseKinds(cfg.Render.Sinks)
	if err != nil {
		return nil, nil, err
	}

	interval := cfg.Render.Interval
	if interval <= 0 {
		interval = profile.RenderInterval
	}

	var (
		sinks   transport.Multi
		display *tui.BarsSink
	)
	for _, kind := range kinds {
		var (
			sink transport.Sink
			err  error
		)
		switch kind {
		case transport.KindTUI:
			display = tui.NewBarsSink(tui.BarsOptions{
				Title:    fmt.Sprintf("%s · %s", build.GetBuildFlags().Name, profile.Name),
				Interval: interval,
				MaxBars:  config.MaxBars,
			})
			sink = display
		case transport.KindWebSocket:
			sink, err = transport.NewWebSocketSink(cfg.Transport.WebSocketAddr)
		case transport.KindUDP:
			sink, err = udp.Dial(cfg.Transport.UDPTargetAddress)
		case transport.KindLog:
			sink = transport.NewLoggingSink(cfg.Render.LogEvery)
		}
		if err != nil {
			sinks.Close()
			return nil, nil, fmt.Errorf("opening %s sink: %w", kind, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, display, nil
}

// divertLogs keeps log lines off the terminal display. They go to path, or
// nowhere when path is empty.
func divertLogs(path string) (restore func(), err error) {
	var (
		w       io.Writer = io.Discard
		closeFn           = func() error { return nil }
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closeFn = f, f.Close
	}
	log.SetOutput(w)
	return func() {
		log.SetOutput(os.Stderr)
		closeFn()
	}, nil
}

// PrintBands writes the bucket table for the configured bar count and
// profile. Buckets outside the visible bars only feed the Gaussian pass.
func PrintBands(w io.Writer, cfg *config.Config) error {
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	reducer, err := profile.NewReducer(cfg.Analysis.Bars)
	if err != nil {
		return err
	}
	tbl := reducer.Table()
	shift := profile.Smoother.Degree - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("bucket", "bar", "bins", "range (Hz)")
	for i, b := range tbl.Buckets() {
		bar := "-"
		if v := i - shift; v >= 0 && v < cfg.Analysis.Bars {
			bar = strconv.Itoa(v)
		}
		start, end := b.Effective()
		lo, hi := tbl.HzRange(i)
		t.Row(
			strconv.Itoa(i),
			bar,
			fmt.Sprintf("%d-%d", start, end-1),
			fmt.Sprintf("%.0f-%.0f", lo, hi),
		)
	}

	fmt.Fprintf(w, "Profile %s: %d bars, %d buckets, %.0f Hz per bin, low cut %d\n",
		profile.Name, cfg.Analysis.Bars, tbl.Len(), tbl.HzStep(), reducer.LowCut())
	_, err = fmt.Fprintln(w, t.String())
	return err
}
