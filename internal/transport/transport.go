// SPDX-License-Identifier: MIT
package transport

import "audiosync/internal/analysis"

// Sink receives every emitted frame together with its encoded wire packet.
// Implementations must not retain packet after Send returns and must not
// block the processing loop for long; slow consumers should drop.
type Sink interface {
	Send(packet []byte, frame *analysis.SpectralFrame) error
	Close() error
}

// Multi fans a frame out to several sinks. Every sink is called; the first
// error is returned.
type Multi []Sink

// Send forwards to every sink in order.
func (m Multi) Send(packet []byte, frame *analysis.SpectralFrame) error {
	var first error
	for _, s := range m {
		if err := s.Send(packet, frame); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Sink = Multi(nil)
