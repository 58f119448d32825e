// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the visualizer configuration.
const (
	DefaultLogLevel      = "info"
	DefaultDeviceID      = MinDeviceID // Pick by label, then system default
	DefaultSampleRate    = 48000
	DefaultChannels      = 1
	DefaultChannel       = "left"
	DefaultBlockDuration = 50 * time.Millisecond
	DefaultBars          = 25
	DefaultProfile       = "tuned"
	DefaultFFTBackend    = "gonum"
	DefaultFFTWindow     = "rectangular"
	DefaultSinks         = "tui"
	DefaultWebSocketAddr = ":8080"
	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultLogEvery      = 30 // Frames between log sink lines

	DefaultRetryBackoff    = 10 * time.Millisecond
	DefaultRetryMaxBackoff = 500 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents label match or system default
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxChannels      = 2      // Channel selection covers left and right only
	MaxBars          = 512
	MinBlockDuration = 5 * time.Millisecond
	MaxBlockDuration = time.Second
)

// DefaultDeviceLabels are matched against device names when no index is
// configured.
var DefaultDeviceLabels = []string{"mic", "input"}
