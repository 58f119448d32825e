// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"net"
	"sync"

	"audiobars/internal/log"
)

var logger = log.Named("udp")

// Sender sends datagrams to a single target.
type Sender struct {
	conn   *net.UDPConn
	target string
	mu     sync.Mutex // Protects conn during Close
	closed bool
}

// NewSender dials targetAddress, e.g. "127.0.0.1:9090".
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// No local port is needed for sending.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	logger.Infof("sending to %s", conn.RemoteAddr())
	return &Sender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Target returns the resolved remote address.
func (s *Sender) Target() string { return s.target }

// Send transmits data as one datagram.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the connection. Safe to call repeatedly.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	logger.Infof("closing connection to %s", s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
