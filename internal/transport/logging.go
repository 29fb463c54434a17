// SPDX-License-Identifier: MIT
package transport

import (
	"audiosync/internal/analysis"
	applog "audiosync/internal/log"
)

// LoggingSink writes a summary of every Nth frame to the debug log.
type LoggingSink struct {
	every uint64
	seen  uint64
}

// NewLoggingSink logs one frame out of every. Values below 1 log every frame.
func NewLoggingSink(every int) *LoggingSink {
	if every < 1 {
		every = 1
	}
	applog.Debugf("Transport: Using LoggingSink (every %d frames)", every)
	return &LoggingSink{every: uint64(every)}
}

// Send logs the frame when it falls on the sampling interval. It never fails.
func (ls *LoggingSink) Send(_ []byte, frame *analysis.SpectralFrame) error {
	ls.seen++
	if (ls.seen-1)%ls.every != 0 || !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	applog.WithFields(applog.Fields{
		"frame": frame.Counter,
		"raw":   int(frame.SampleRaw),
		"smth":  int(frame.SampleSmooth),
		"beat":  frame.Beat,
		"peak":  int(frame.MajorPeak),
		"zc":    frame.ZeroCrossings,
		"bins":  frame.Bins,
	}).Debug("Frame")
	return nil
}

// Close is a no-op for LoggingSink.
func (ls *LoggingSink) Close() error {
	return nil
}

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
