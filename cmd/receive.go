// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"audiosync/internal/config"
	applog "audiosync/internal/log"
	"audiosync/internal/transport/udp"
)

// Receive listens on the configured UDP port and prints every valid packet
// to w until ctx is done or cfg.Receive.Count packets were shown.
func Receive(ctx context.Context, cfg *config.Config, w io.Writer) error {
	r, err := udp.Listen(fmt.Sprintf(":%d", cfg.Transport.UDPPort))
	if err != nil {
		return err
	}
	return receive(ctx, r, cfg.Receive.Count, w)
}

func receive(ctx context.Context, r *udp.Receiver, count int, w io.Writer) error {
	fmt.Fprintf(w, "Listening on %s for audio sync packets...\n", r.Addr())

	var seen int
	err := r.Run(ctx, func(p udp.Packet) bool {
		seen++
		writePacket(w, seen, p)
		return count == 0 || seen < count
	})

	fmt.Fprintf(w, "\n%d packets received, %d invalid\n", seen, r.Invalid())
	applog.WithFields(applog.Fields{"packets": seen, "invalid": r.Invalid()}).Debug("Receiver stopped")
	return err
}

func writePacket(w io.Writer, n int, p udp.Packet) {
	f := p.Frame
	bins := make([]string, len(f.Bins))
	for i, b := range f.Bins {
		bins[i] = fmt.Sprint(b)
	}
	fmt.Fprintf(w, "\nPacket #%d from %s\n", n, p.From)
	fmt.Fprintf(w, "  sampleRaw: %.2f, sampleSmth: %.2f\n", f.SampleRaw, f.SampleSmooth)
	fmt.Fprintf(w, "  samplePeak: %t, frameCounter: %d\n", f.Beat, f.Counter)
	fmt.Fprintf(w, "  FFT bins: [%s]\n", strings.Join(bins, ", "))
	fmt.Fprintf(w, "  zeroCrossings: %d, magnitude: %.3f, majorPeak: %.1f Hz\n",
		f.ZeroCrossings, f.Magnitude, f.MajorPeak)
}
