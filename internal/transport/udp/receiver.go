// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	"audiosync/internal/analysis"
	applog "audiosync/internal/log"
)

// Packet is a decoded datagram and its source.
type Packet struct {
	From  netip.AddrPort
	Frame analysis.SpectralFrame
}

// Receiver listens for audio sync packets and decodes them.
type Receiver struct {
	conn    *net.UDPConn
	invalid atomic.Uint64
}

// Listen binds a receiver to addr, e.g. ":11988".
func Listen(addr string) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address '%s': %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", addr, err)
	}
	return &Receiver{conn: conn}, nil
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Invalid returns the number of datagrams rejected by Decode.
func (r *Receiver) Invalid() uint64 { return r.invalid.Load() }

// Run reads datagrams until ctx is done or handle returns false. Datagrams
// that fail to decode are logged and skipped. Run closes the socket on return.
func (r *Receiver) Run(ctx context.Context, handle func(Packet) bool) error {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()
	defer r.conn.Close()

	// One spare byte detects oversized datagrams.
	buf := make([]byte, PacketSize+1)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read UDP packet: %w", err)
		}

		frame, err := Decode(buf[:n])
		if err != nil {
			r.invalid.Add(1)
			applog.WithFields(applog.Fields{"from": from.String(), "bytes": n}).
				WithError(err).Warn("Receiver: Dropping invalid packet")
			continue
		}

		if !handle(Packet{From: from, Frame: frame}) {
			return nil
		}
	}
}

// Close releases the socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
