// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrDeviceUnavailable is returned when no matching input exists or a
	// stream cannot be opened with the requested parameters.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrStreamInterrupted is returned by ReadBlock on disconnection, overrun
	// or read timeout. Callers may retry.
	ErrStreamInterrupted = errors.New("audio stream interrupted")

	// ErrClosed is returned by ReadBlock after Close.
	ErrClosed = errors.New("audio source closed")

	// ErrUnsupportedFormat is returned for files that cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrSampleRateMismatch is returned when a file's rate differs from the
	// capture rate. Files are never resampled.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
)
