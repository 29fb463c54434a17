// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"

	"audiosync/internal/analysis"
)

// MockSink implements transport.Sink for tests by recording what it is sent.
type MockSink struct {
	mu      sync.Mutex
	Packets [][]byte
	Frames  []analysis.SpectralFrame
	Err     error // returned from every Send when set
	Closed  bool
}

// Send stores copies of the packet and frame instead of transmitting.
func (m *MockSink) Send(packet []byte, frame *analysis.SpectralFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, append([]byte(nil), packet...))
	m.Frames = append(m.Frames, *frame)
	return m.Err
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Len returns the number of recorded sends.
func (m *MockSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Packets)
}

// Snapshot returns a copy of the recorded frames.
func (m *MockSink) Snapshot() []analysis.SpectralFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]analysis.SpectralFrame(nil), m.Frames...)
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency with the given
// peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// Interleave duplicates a mono signal across channels as capture callbacks
// deliver it.
func Interleave(mono []float64, channels int) []float32 {
	out := make([]float32, 0, len(mono)*channels)
	for _, v := range mono {
		for range channels {
			out = append(out, float32(v))
		}
	}
	return out
}

// FindPeakBin returns the index of the largest value in magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
