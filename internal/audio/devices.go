// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceLabels are the device names matched when no index is given.
var DefaultDeviceLabels = []string{"mic", "input"}

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
}

// IsInput reports whether the device can capture.
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// DeviceSelector picks the capture device. Index -1 means "not set".
type DeviceSelector struct {
	Index  int
	Labels []string
}

// Mocked in tests.
var (
	paDevicesFunc      = portaudio.Devices
	paDefaultInputFunc = portaudio.DefaultInputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns all devices known to PortAudio, indexed by position.
// PortAudio must be initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = deviceFromInfo(i, info)
	}
	return devices, nil
}

func deviceFromInfo(id int, info *portaudio.DeviceInfo) Device {
	return Device{
		ID:                id,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
		LowInputLatency:   info.DefaultLowInputLatency,
		HighInputLatency:  info.DefaultHighInputLatency,
	}
}

// SelectDevice resolves sel against devices. An explicit index wins and must
// name an input device. Otherwise the first input device, in enumeration
// order, whose name equals one of the labels (ignoring case and surrounding
// space) is chosen. -1 with a nil error means "use the system default".
func SelectDevice(devices []Device, sel DeviceSelector) (int, error) {
	if sel.Index >= 0 {
		if sel.Index >= len(devices) {
			return -1, fmt.Errorf("%w: invalid device ID: %d", ErrDeviceUnavailable, sel.Index)
		}
		if !devices[sel.Index].IsInput() {
			return -1, fmt.Errorf("%w: device %d (%s) does not support input",
				ErrDeviceUnavailable, sel.Index, devices[sel.Index].Name)
		}
		return sel.Index, nil
	}

	labels := sel.Labels
	if labels == nil {
		labels = DefaultDeviceLabels
	}
	for _, d := range devices {
		if !d.IsInput() {
			continue
		}
		name := strings.TrimSpace(d.Name)
		for _, label := range labels {
			if strings.EqualFold(name, strings.TrimSpace(label)) {
				return d.ID, nil
			}
		}
	}
	return -1, nil
}

// InputDevice retrieves the PortAudio device chosen by sel, falling back to
// the system default input. PortAudio must be initialized.
func InputDevice(sel DeviceSelector) (*portaudio.DeviceInfo, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = deviceFromInfo(i, info)
	}

	idx, err := SelectDevice(devices, sel)
	if err != nil {
		return nil, err
	}
	if idx >= 0 {
		return infos[idx], nil
	}

	device, err := paDefaultInputFunc()
	if err != nil || device == nil {
		return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
	}
	return device, nil
}

// ListDevices writes information about all available audio devices to w.
// For each device, it shows:
// - Device ID and name
// - Device type (Input/Output/Input+Output)
// - Channel count
// - Default sample rate
// - Latency ranges
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for _, device := range devices {
		inputChannels := device.MaxInputChannels
		outputChannels := device.MaxOutputChannels

		deviceType := ""
		if inputChannels > 0 && outputChannels > 0 {
			deviceType = "Input/Output"
		} else if inputChannels > 0 {
			deviceType = "Input"
		} else if outputChannels > 0 {
			deviceType = "Output"
		}

		fmt.Fprintf(w, "[%d] %s (%s)\n", device.ID, device.Name, deviceType)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", inputChannels, outputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			device.LowInputLatency.Seconds()*1000,
			device.HighInputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}

	return nil
}
