// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"
)

// Channel selects which channel of interleaved frames is analysed.
type Channel int

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel converts "left" or "right" (case-insensitive) to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	default:
		return Left, fmt.Errorf("unknown channel: '%s'", name)
	}
}

// offset returns the position of c inside a frame of channels samples.
// Mono frames always yield 0.
func (c Channel) offset(channels int) int {
	if channels <= 1 || c < Left {
		return 0
	}
	if int(c) >= channels {
		return channels - 1
	}
	return int(c)
}

// ExtractChannel copies one channel out of interleaved frames into dst and
// returns the number of frames written. For mono input it is a plain copy.
func ExtractChannel(dst, interleaved []int16, channels int, c Channel) int {
	if channels <= 1 {
		return copy(dst, interleaved)
	}
	off := c.offset(channels)
	n := 0
	for i := off; i < len(interleaved) && n < len(dst); i += channels {
		dst[n] = interleaved[i]
		n++
	}
	return n
}
