// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	applog "audiosync/internal/log"
	"audiosync/pkg/bitint"
)

// Spectrum layout constants.
const (
	FFTSize      = 2048 // Analysis window length in samples.
	HopSize      = 1024 // New samples per analysis pass (50% overlap).
	NumBins      = 16   // Log-spaced output bins.
	MinFrequency = 60   // Lower edge of the first output bin (Hz).
	MaxFrequency = 6000 // Upper edge of the last output bin (Hz).

	// DefaultBinCeiling is the summed flat-top magnitude that maps to 255 in
	// an output bin. A sine of amplitude A centred on an FFT bin sums to about
	// 1024*A at FFTSize 2048, so a bin saturates near -18 dBFS.
	DefaultBinCeiling = 128.0
)

// Spectrum is the result of one analysis pass.
type Spectrum struct {
	Bins      [NumBins]uint8 // Summed magnitude per log bin, scaled to 0..255.
	Magnitude float64        // RMS of the FFT magnitudes, excluding DC.
	MajorPeak float64        // Frequency of the strongest bin in range (Hz).
}

// binRange is a half-open range of FFT bin indices.
type binRange struct {
	lo, hi int
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Per-bin magnitudes.
	window    []float64    // Flat-top coefficients.
}

// Analyzer computes a flat-top windowed real FFT over a fixed-size window and
// derives the log-spaced bins, overall magnitude and major peak. It is not safe
// for concurrent use; the processing loop owns it.
type Analyzer struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	binCeiling    float64
	workspace     fftWorkspace
	bins          [NumBins]binRange
	peak          binRange // FFT bins searched for the major peak
}

// NewAnalyzer creates an analyzer for windows of fftSize samples captured at
// sampleRate. A non-positive binCeiling selects DefaultBinCeiling.
func NewAnalyzer(fftSize int, sampleRate, binCeiling float64) (*Analyzer, error) {
	order := bitint.Log2(fftSize)
	if order < 0 {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if binCeiling <= 0 {
		binCeiling = DefaultBinCeiling
	}

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	a := &Analyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		binCeiling:    binCeiling,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    FlatTop(fftSize),
		},
	}

	ratio := math.Pow(MaxFrequency/MinFrequency, 1.0/NumBins)
	edge := float64(MinFrequency)
	for i := range a.bins {
		next := MinFrequency * math.Pow(ratio, float64(i+1))
		if i == NumBins-1 {
			next = MaxFrequency
		}
		a.bins[i] = a.binsBetween(edge, next)
		edge = next
	}
	a.peak = binRange{lo: max(a.bins[0].lo, 1), hi: a.bins[NumBins-1].hi}

	applog.Debugf("Analysis: Initializing Analyzer (Size: %d = 2^%d, SampleRate: %.1f Hz, Resolution: %.2f Hz)",
		fftSize, order, sampleRate, a.Resolution())

	return a, nil
}

// binsBetween returns the FFT bins whose centre frequency lies in [lowHz, highHz).
func (a *Analyzer) binsBetween(lowHz, highHz float64) binRange {
	res := a.Resolution()
	last := len(a.workspace.magnitude)
	lo := min(int(math.Ceil(lowHz/res)), last)
	hi := min(int(math.Ceil(highHz/res)), last)
	return binRange{lo: lo, hi: hi}
}

// Analyze windows the samples, runs the FFT and fills a Spectrum. The window
// must hold exactly FFTSize samples.
func (a *Analyzer) Analyze(samples []float64) Spectrum {
	ws := &a.workspace

	// --- 1. Windowing ---
	floats.MulTo(ws.input, samples, ws.window)

	// --- 2. FFT ---
	a.fftCalculator.Coefficients(ws.fftOutput, ws.input)

	// --- 3. Magnitudes ---
	for i, c := range ws.fftOutput {
		ws.magnitude[i] = cmplx.Abs(c)
	}

	var out Spectrum

	// --- 4. Log bins ---
	for i, r := range a.bins {
		if r.hi <= r.lo {
			continue
		}
		sum := floats.Sum(ws.magnitude[r.lo:r.hi])
		out.Bins[i] = scaleToByte(sum / a.binCeiling * 255)
	}

	// --- 5. Overall magnitude ---
	ac := ws.magnitude[1:]
	out.Magnitude = floats.Norm(ac, 2) / math.Sqrt(float64(len(ac)))

	// --- 6. Major peak ---
	if a.peak.hi > a.peak.lo {
		idx := a.peak.lo + floats.MaxIdx(ws.magnitude[a.peak.lo:a.peak.hi])
		if ws.magnitude[idx] > 0 {
			out.MajorPeak = a.BinFrequency(idx)
		}
	}

	return out
}

// Magnitudes returns the magnitude spectrum of the last Analyze call. The
// slice is owned by the analyzer and is overwritten by the next call.
func (a *Analyzer) Magnitudes() []float64 {
	return a.workspace.magnitude
}

// BinFrequency returns the centre frequency (Hz) of FFT bin index.
func (a *Analyzer) BinFrequency(index int) float64 {
	if index < 0 || index >= len(a.workspace.magnitude) {
		return 0.0
	}
	return float64(index) * a.Resolution()
}

// Resolution returns the bin spacing in Hz.
func (a *Analyzer) Resolution() float64 {
	return a.sampleRate / float64(a.fftSize)
}

// FFTSize returns the configured FFT size.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// scaleToByte clamps v to [0, 255] and rounds to the nearest integer.
func scaleToByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
