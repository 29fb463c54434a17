// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiosync/internal/analysis"
	"audiosync/internal/transport/udp"
)

func TestReceivePrintsPackets(t *testing.T) {
	r, err := udp.Listen("127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.Dial("udp4", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- receive(context.Background(), r, 2, &out) }()

	frame := analysis.SpectralFrame{SampleRaw: 12.5, SampleSmooth: 10, Beat: true, Counter: 7, MajorPeak: 1000}
	frame.Bins[0] = 200
	pkt := udp.Encode(&frame)

	// Resend until the receiver has counted two, in case the first datagram
	// races the goroutine start.
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			text := out.String()
			assert.Contains(t, text, "Packet #1 from 127.0.0.1:")
			assert.Contains(t, text, "Packet #2")
			assert.NotContains(t, text, "Packet #3")
			assert.Contains(t, text, "sampleRaw: 12.50, sampleSmth: 10.00")
			assert.Contains(t, text, "samplePeak: true, frameCounter: 7")
			assert.Contains(t, text, "FFT bins: [200, 0, 0")
			assert.Contains(t, text, "2 packets received, 0 invalid")
			return
		case <-tick.C:
			// Writes after the receiver closed may fail with ECONNREFUSED.
			_, _ = conn.Write(pkt[:])
		case <-deadline:
			t.Fatal("receive did not stop after two packets")
		}
	}
}

func TestReceiveStopsOnCancel(t *testing.T) {
	r, err := udp.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, receive(ctx, r, 0, &out))
	assert.Contains(t, out.String(), "0 packets received")
}
