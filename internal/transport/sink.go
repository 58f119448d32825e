// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"strings"

	"audiobars/internal/transport/udp"
)

// Sink receives one smoothed bar sequence per render tick. The slice is
// only valid for the duration of the call.
type Sink interface {
	Render(bars []float64) error
	Close() error
}

// Multi fans each frame out to several sinks. Every sink is called even if
// an earlier one fails.
type Multi []Sink

// Render forwards bars to every sink and joins their errors.
func (m Multi) Render(bars []float64) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(bars); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure sinks satisfy the interface at compile time.
var (
	_ Sink = Multi(nil)
	_ Sink = (*udp.Publisher)(nil)
)

// Kind names a sink in configuration.
type Kind string

const (
	KindTUI       Kind = "tui"
	KindWebSocket Kind = "websocket"
	KindUDP       Kind = "udp"
	KindLog       Kind = "log"
)

// ParseKinds parses a comma separated sink list such as "tui,udp".
// Duplicates are dropped and order is kept.
func ParseKinds(list string) ([]Kind, error) {
	var kinds []Kind
	seen := make(map[Kind]bool)
	for _, part := range strings.Split(list, ",") {
		k := Kind(strings.ToLower(strings.TrimSpace(part)))
		if k == "" {
			continue
		}
		switch k {
		case KindTUI, KindWebSocket, KindUDP, KindLog:
		case "ws":
			k = KindWebSocket
		default:
			return nil, fmt.Errorf("unknown sink: '%s'", part)
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}
	return kinds, nil
}
