// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"audiobars/cmd"
	"audiobars/internal/audio"
	"audiobars/internal/log"
	"audiobars/internal/tui"
	"audiobars/pkg/build"
)

// main is the entry point for the visualizer.
//
//  1. Startup: build information, command line, configuration, logging.
//  2. One-off commands (device list, band table) run and exit.
//  3. Otherwise the pipeline runs until interrupted, the input ends or the
//     terminal display is closed. The driver owns the audio source and
//     releases it on every exit path.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("using development build information: %v", err)
	}

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if inv.Config == nil {
		return
	}

	cfg := inv.Config
	level, _ := log.ParseLevel(cfg.LogLevel)
	if inv.Verbose {
		level = log.LevelDebug
	}
	log.SetLevel(level)

	switch inv.Command {
	case cmd.CommandList:
		if err := withPortAudio(func() error { return audio.ListDevices(os.Stdout) }); err != nil {
			log.Fatalf("%v", err)
		}
		return
	case cmd.CommandBands:
		if err := cmd.PrintBands(os.Stdout, cfg); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if inv.Pick {
		err := withPortAudio(func() error {
			sel, err := tui.PickDevice()
			if err != nil {
				return err
			}
			cfg.Audio.Source = ""
			cfg.Audio.InputDevice = sel.DeviceID
			cfg.Audio.SampleRate = sel.SampleRate
			log.Infof("using device %d (%s) at %.0f Hz", sel.DeviceID, sel.DeviceName, sel.SampleRate)
			return nil
		})
		if errors.Is(err, tui.ErrCancelled) {
			return
		}
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

// withPortAudio runs fn with the PortAudio subsystem initialized.
func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return fn()
}
