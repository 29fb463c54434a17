// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"

	"audiosync/internal/analysis"
	applog "audiosync/internal/log"
	"audiosync/internal/transport"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// BroadcastSender writes every packet to a fixed list of broadcast targets
// from one unconnected IPv4 socket. Failed writes are logged at debug level
// and counted; they are never retried.
type BroadcastSender struct {
	conn    *net.UDPConn
	targets []netip.AddrPort
	mu      sync.Mutex // Protects conn during Close
	closed  bool

	sent   atomic.Uint64
	errors atomic.Uint64
}

// NewBroadcastSender enumerates the broadcast targets once and opens the
// sending socket. Either failure is fatal for the caller. Unicast addresses
// are sent to in addition to the broadcast targets.
func NewBroadcastSender(port int, unicast ...netip.Addr) (*BroadcastSender, error) {
	targets, err := BroadcastTargets(port)
	if err != nil {
		return nil, err
	}
	for _, a := range unicast {
		t := netip.AddrPortFrom(a.Unmap(), uint16(port))
		if !slices.Contains(targets, t) {
			targets = append(targets, t)
		}
	}

	// Go enables SO_BROADCAST on IPv4 datagram sockets.
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}

	s := NewSender(conn, targets)
	for _, t := range targets {
		applog.Infof("UDP Sender: Broadcasting to %s", t)
	}
	return s, nil
}

// NewSender wraps an existing socket and target list. The sender owns conn.
func NewSender(conn *net.UDPConn, targets []netip.AddrPort) *BroadcastSender {
	return &BroadcastSender{
		conn:    conn,
		targets: cloneTargets(targets),
	}
}

func cloneTargets(in []netip.AddrPort) []netip.AddrPort {
	return append([]netip.AddrPort(nil), in...)
}

// Send transmits packet to every target. All targets are attempted; the first
// write error is returned after the loop.
func (s *BroadcastSender) Send(packet []byte, _ *analysis.SpectralFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}

	var first error
	for _, target := range s.targets {
		if _, err := s.conn.WriteToUDPAddrPort(packet, target); err != nil {
			s.errors.Add(1)
			if applog.Enabled(applog.LevelDebug) {
				applog.WithError(err).WithField("target", target.String()).Debug("UDP Sender: Failed to send packet")
			}
			if first == nil {
				first = fmt.Errorf("failed to send UDP packet to %s: %w", target, err)
			}
			continue
		}
		s.sent.Add(1)
	}
	return first
}

// Targets returns a copy of the destination list.
func (s *BroadcastSender) Targets() []netip.AddrPort {
	return cloneTargets(s.targets)
}

// Sent returns the number of successful datagram writes.
func (s *BroadcastSender) Sent() uint64 { return s.sent.Load() }

// Errors returns the number of failed datagram writes.
func (s *BroadcastSender) Errors() uint64 { return s.errors.Load() }

// Close closes the underlying UDP socket.
func (s *BroadcastSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}

	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP socket: %w", err)
	}
	applog.Debugf("UDP Sender: Closed socket %s", s.conn.LocalAddr())
	return nil
}

var _ transport.Sink = (*BroadcastSender)(nil)
