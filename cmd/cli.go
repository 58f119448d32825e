// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"audiobars/internal/config"
	"audiobars/pkg/build"
)

// Commands selectable on the command line.
const (
	CommandRun   = ""
	CommandList  = "list"
	CommandBands = "bands"
)

// Invocation is the parsed command line.
type Invocation struct {
	Config  *config.Config
	Command string
	Pick    bool // Choose the capture device interactively before starting.
	Verbose bool
}

// flagValues holds flag targets before they are merged into the config.
type flagValues struct {
	configPath string
	device     int
	source     string
	sampleRate float64
	channels   int
	channel    string
	lowLatency bool
	loop       bool
	gate       float64
	bars       int
	profile    string
	backend    string
	window     string
	sinks      string
	wsAddr     string
	udpTarget  string
	pick       bool
	verbose    bool
}

// ParseArgs parses args (without the program name). Configuration is loaded
// from file and environment first, then explicitly set flags override it.
// Config is nil when cobra answered the invocation itself (help, version).
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	inv := &Invocation{}
	var fv flagValues

	load := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(fv.configPath)
		if err != nil {
			return err
		}
		applyFlags(cfg, cmd.Flags(), &fv)
		if err := cfg.Validate(); err != nil {
			return err
		}
		inv.Config = cfg
		inv.Pick = fv.pick
		inv.Verbose = fv.verbose || cfg.Debug
		return nil
	}

	rootCmd := &cobra.Command{
		Use:               buildInfo.Name,
		Short:             buildInfo.Description,
		Version:           buildInfo.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: load,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandList
			return nil
		},
	})

	// Bands command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "bands",
		Short: "Print the frequency range of every bar for the configured profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandBands
			return nil
		},
	})

	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&fv.configPath, "config", "f", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")

	// Audio Source Configuration
	flags.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.StringVarP(&fv.source, "input", "i", "",
		"Audio file to replay or tone:<hz> instead of live capture")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	flags.StringVar(&fv.channel, "channel", config.DefaultChannel,
		"Channel to analyse when capturing two (left or right)")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	flags.BoolVar(&fv.loop, "loop", false,
		"Restart file replay at end of file")
	flags.Float64Var(&fv.gate, "gate", 0,
		"Noise gate threshold as a fraction of full scale (0 disables)")
	flags.BoolVar(&fv.pick, "pick", false,
		"Choose the capture device interactively")

	// Analysis Configuration
	flags.IntVarP(&fv.bars, "bars", "n", config.DefaultBars,
		"Number of bars to display")
	flags.StringVarP(&fv.profile, "profile", "p", config.DefaultProfile,
		"Calibration profile (classic or tuned)")
	flags.StringVar(&fv.backend, "fft-backend", config.DefaultFFTBackend,
		"FFT implementation (gonum or godsp)")
	flags.StringVar(&fv.window, "fft-window", config.DefaultFFTWindow,
		"Window applied before the FFT")

	// Output Configuration
	flags.StringVarP(&fv.sinks, "sink", "o", config.DefaultSinks,
		"Comma separated outputs: tui, websocket, udp, log")
	flags.StringVar(&fv.wsAddr, "ws-addr", config.DefaultWebSocketAddr,
		"Listen address for the websocket sink")
	flags.StringVar(&fv.udpTarget, "udp-target", config.DefaultUDPTarget,
		"Target address for the udp sink")

	// Debug Configuration
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return inv, nil
}

// applyFlags copies flags the user set explicitly into cfg.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv *flagValues) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("device", func() { cfg.Audio.InputDevice = fv.device })
	set("input", func() { cfg.Audio.Source = fv.source })
	set("sample-rate", func() { cfg.Audio.SampleRate = fv.sampleRate })
	set("channels", func() { cfg.Audio.InputChannels = fv.channels })
	set("channel", func() { cfg.Audio.Channel = fv.channel })
	set("low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency })
	set("loop", func() { cfg.Audio.Loop = fv.loop })
	set("gate", func() { cfg.Audio.GateThreshold = fv.gate })
	set("bars", func() { cfg.Analysis.Bars = fv.bars })
	set("profile", func() { cfg.Analysis.Profile = fv.profile })
	set("fft-backend", func() { cfg.Analysis.FFTBackend = fv.backend })
	set("fft-window", func() { cfg.Analysis.FFTWindow = fv.window })
	set("sink", func() { cfg.Render.Sinks = fv.sinks })
	set("ws-addr", func() { cfg.Transport.WebSocketAddr = fv.wsAddr })
	set("udp-target", func() { cfg.Transport.UDPTargetAddress = fv.udpTarget })
	set("verbose", func() {
		if fv.verbose {
			cfg.LogLevel = "debug"
		}
	})
}
