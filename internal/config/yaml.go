// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"audiobars/internal/analysis"
	"audiobars/internal/audio"
	"audiobars/internal/log"
	"audiobars/internal/transport"
)

var logger = log.Named("configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	LogFile   string          `yaml:"log_file"`  // Log destination while the terminal display is active.
	Audio     AudioConfig     `yaml:"audio"`     // Block source settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Transform, bucketing and smoothing settings.
	Render    RenderConfig    `yaml:"render"`    // Render loop and sink selection.
	Retry     RetryConfig     `yaml:"retry"`     // Interrupted read handling.
	Transport TransportConfig `yaml:"transport"` // Network sink settings.
}

// AudioConfig holds settings related to the block source.
type AudioConfig struct {
	Source        string        `yaml:"source"`         // Empty for live capture, "tone:<hz>" or an audio file path.
	InputDevice   int           `yaml:"input_device"`   // PortAudio device index (-1 to match labels, then default).
	DeviceLabels  []string      `yaml:"device_labels"`  // Device names tried in order when no index is given.
	SampleRate    float64       `yaml:"sample_rate"`    // Sample rate in Hz.
	InputChannels int           `yaml:"input_channels"` // Channels to capture (1 or 2).
	Channel       string        `yaml:"channel"`        // Channel analysed when capturing two ("left" or "right").
	BlockDuration time.Duration `yaml:"block_duration"` // Length of one analysis block.
	LowLatency    bool          `yaml:"low_latency"`    // Request low latency settings from PortAudio device.
	ReadTimeout   time.Duration `yaml:"read_timeout"`   // Bound on a single device read (0 waits indefinitely).
	Loop          bool          `yaml:"loop"`           // Restart file replay at end of file.
	GateThreshold float64       `yaml:"gate_threshold"` // Peak level (0..1) below which blocks count as silence.
}

// AnalysisConfig holds the pipeline calibration.
type AnalysisConfig struct {
	Bars       int      `yaml:"bars"`         // Visible bar count.
	Profile    string   `yaml:"profile"`      // Calibration profile ("classic" or "tuned").
	FFTBackend string   `yaml:"fft_backend"`  // "gonum" or "godsp".
	FFTWindow  string   `yaml:"fft_window"`   // Window applied before the transform.
	LowCutBins *int     `yaml:"low_cut_bins"` // Overrides the profile's low-cut when set.
	BlendBias  *float64 `yaml:"blend_bias"`   // Overrides the profile's blend bias when set.
}

// RenderConfig holds render loop settings.
type RenderConfig struct {
	Interval time.Duration `yaml:"interval"`  // Render tick (0 uses the profile's interval).
	Sinks    string        `yaml:"sinks"`     // Comma separated: tui, websocket, udp, log.
	LogEvery int           `yaml:"log_every"` // Log sink writes one frame in this many.
}

// RetryConfig bounds retries of interrupted reads.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // 0 retries forever.
	Backoff     time.Duration `yaml:"backoff"`      // First delay, doubled per attempt.
	MaxBackoff  time.Duration `yaml:"max_backoff"`  // Delay cap.
}

// TransportConfig holds settings for the network sinks.
type TransportConfig struct {
	WebSocketAddr    string `yaml:"websocket_addr"`     // Listen address for the WebSocket sink.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:   DefaultDeviceID,
			DeviceLabels:  append([]string(nil), DefaultDeviceLabels...),
			SampleRate:    DefaultSampleRate,
			InputChannels: DefaultChannels,
			Channel:       DefaultChannel,
			BlockDuration: DefaultBlockDuration,
		},
		Analysis: AnalysisConfig{
			Bars:       DefaultBars,
			Profile:    DefaultProfile,
			FFTBackend: DefaultFFTBackend,
			FFTWindow:  DefaultFFTWindow,
		},
		Render: RenderConfig{
			Sinks:    DefaultSinks,
			LogEvery: DefaultLogEvery,
		},
		Retry: RetryConfig{
			Backoff:    DefaultRetryBackoff,
			MaxBackoff: DefaultRetryMaxBackoff,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for "config.yaml" in the working directory and falls back to built-in
// defaults. Environment variable overrides are applied after the file, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded '%s'", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects out-of-range values. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, v ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, v...))
		}
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level '%s' is not a known level", c.LogLevel))
	}

	a := c.Audio
	check(a.InputDevice >= MinDeviceID, "audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	check(a.SampleRate >= MinSampleRate && a.SampleRate <= MaxSampleRate,
		"audio.sample_rate must be within %d..%d Hz, got %.0f", MinSampleRate, MaxSampleRate, a.SampleRate)
	check(a.InputChannels >= 1 && a.InputChannels <= MaxChannels,
		"audio.input_channels must be within 1..%d, got %d", MaxChannels, a.InputChannels)
	check(a.BlockDuration >= MinBlockDuration && a.BlockDuration <= MaxBlockDuration,
		"audio.block_duration must be within %v..%v, got %v", MinBlockDuration, MaxBlockDuration, a.BlockDuration)
	check(a.ReadTimeout >= 0, "audio.read_timeout must not be negative")
	check(a.GateThreshold >= 0 && a.GateThreshold <= 1, "audio.gate_threshold must be within 0..1, got %g", a.GateThreshold)
	if _, err := audio.ParseChannel(a.Channel); err != nil {
		errs = append(errs, fmt.Errorf("audio.channel: %w", err))
	}

	an := c.Analysis
	check(an.Bars >= 1 && an.Bars <= MaxBars, "analysis.bars must be within 1..%d, got %d", MaxBars, an.Bars)
	if _, err := analysis.ProfileByName(an.Profile); err != nil {
		errs = append(errs, fmt.Errorf("analysis.profile: %w", err))
	}
	if _, err := analysis.ParseBackend(an.FFTBackend); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_backend: %w", err))
	}
	if _, err := analysis.ParseWindowFunc(an.FFTWindow); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_window: %w", err))
	}
	check(an.LowCutBins == nil || *an.LowCutBins >= 0, "analysis.low_cut_bins must not be negative")
	check(an.BlendBias == nil || *an.BlendBias >= 0, "analysis.blend_bias must not be negative")

	check(c.Render.Interval >= 0, "render.interval must not be negative")
	check(c.Render.LogEvery >= 0, "render.log_every must not be negative")
	kinds, err := transport.ParseKinds(c.Render.Sinks)
	if err != nil {
		errs = append(errs, fmt.Errorf("render.sinks: %w", err))
	}
	for _, k := range kinds {
		switch k {
		case transport.KindWebSocket:
			check(c.Transport.WebSocketAddr != "", "transport.websocket_addr must be set for the websocket sink")
		case transport.KindUDP:
			check(strings.Contains(c.Transport.UDPTargetAddress, ":"),
				"transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
	}

	check(c.Retry.MaxAttempts >= 0, "retry.max_attempts must not be negative")
	check(c.Retry.Backoff >= 0 && c.Retry.MaxBackoff >= 0, "retry backoff must not be negative")

	return errors.Join(errs...)
}

// Profile resolves the analysis profile with the configured overrides.
func (c *Config) Profile() (analysis.Profile, error) {
	p, err := analysis.ProfileByName(c.Analysis.Profile)
	if err != nil {
		return analysis.Profile{}, err
	}
	if c.Analysis.LowCutBins != nil {
		p.LowCut = *c.Analysis.LowCutBins
	}
	if c.Analysis.BlendBias != nil {
		p = p.WithBias(*c.Analysis.BlendBias)
	}
	return p, nil
}

// BlockLength returns the frames per analysis block.
func (c *Config) BlockLength() int {
	return audio.BlockLength(c.Audio.SampleRate, c.Audio.BlockDuration)
}

// SourceOptions converts the audio section into source options.
func (c *Config) SourceOptions() (audio.Options, error) {
	channel, err := audio.ParseChannel(c.Audio.Channel)
	if err != nil {
		return audio.Options{}, err
	}
	return audio.Options{
		Input:       c.Audio.Source,
		SampleRate:  c.Audio.SampleRate,
		Channels:    c.Audio.InputChannels,
		Channel:     channel,
		BlockLength: c.BlockLength(),
		Device: audio.DeviceSelector{
			Index:  c.Audio.InputDevice,
			Labels: c.Audio.DeviceLabels,
		},
		LowLatency:    c.Audio.LowLatency,
		ReadTimeout:   c.Audio.ReadTimeout,
		Loop:          c.Audio.Loop,
		GateThreshold: c.Audio.GateThreshold,
	}, nil
}

// applyEnvOverrides applies ENV_* variables. Unparseable values are logged
// and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			logger.Infof("overriding debug from env: %v", bVal)
		} else {
			logger.Warnf("ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	// These are specific to the block source.

	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = id
			logger.Infof("overriding audio.input_device from env: %d", id)
		} else {
			c.Audio.InputDevice = MinDeviceID
			c.Audio.DeviceLabels = []string{val}
			logger.Infof("overriding audio.device_labels from env: %s", val)
		}
	}
	// ENV_AUDIO_SOURCE
	if val, ok := os.LookupEnv("ENV_AUDIO_SOURCE"); ok {
		c.Audio.Source = val
		logger.Infof("overriding audio.source from env: %s", val)
	}

	// ENV_BARS
	if val, ok := os.LookupEnv("ENV_BARS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Analysis.Bars = n
			logger.Infof("overriding analysis.bars from env: %d", n)
		} else {
			logger.Warnf("ignoring ENV_BARS=%q: %v", val, err)
		}
	}
	// ENV_PROFILE
	if val, ok := os.LookupEnv("ENV_PROFILE"); ok {
		c.Analysis.Profile = val
		logger.Infof("overriding analysis.profile from env: %s", val)
	}
	// ENV_SINK
	if val, ok := os.LookupEnv("ENV_SINK"); ok {
		c.Render.Sinks = val
		logger.Infof("overriding render.sinks from env: %s", val)
	}

	// ENV_WEBSOCKET_ADDR
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		logger.Infof("overriding transport.websocket_addr from env: %s", val)
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
}
