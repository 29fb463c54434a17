// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SilenceThreshold is the peak absolute sample below which a window is
// treated as silent and its spectral features are zeroed.
const SilenceThreshold = 1e-5

// Options tunes a Processor. Zero values select the package defaults.
type Options struct {
	SampleRate       float64
	BinCeiling       float64
	BeatSensitivity  float64
	BeatRefractory   int
	LevelFloor       float64
	LevelReleaseRate float64
}

// Processor runs every per-window feature extractor in order and owns their
// state. One Process call corresponds to one hop.
type Processor struct {
	analyzer *Analyzer
	level    *LevelTracker
	beat     *BeatDetector
}

// NewProcessor builds the analyzer, level tracker and beat detector for
// FFTSize windows.
func NewProcessor(opts Options) (*Processor, error) {
	a, err := NewAnalyzer(FFTSize, opts.SampleRate, opts.BinCeiling)
	if err != nil {
		return nil, err
	}
	return &Processor{
		analyzer: a,
		level:    NewLevelTracker(opts.LevelFloor, opts.LevelReleaseRate),
		beat:     NewBeatDetector(a, opts.BeatSensitivity, opts.BeatRefractory),
	}, nil
}

// Process derives a SpectralFrame from a full window. AGC and beat state
// advance exactly once per call, silent windows included. Counter is left at
// zero for the caller to fill.
func (p *Processor) Process(window []float64) SpectralFrame {
	var frame SpectralFrame

	rms := floats.Norm(window, 2) / math.Sqrt(float64(len(window)))
	frame.SampleRaw, frame.SampleSmooth = p.level.Update(rms)

	if floats.Norm(window, math.Inf(1)) < SilenceThreshold {
		p.beat.Observe(0)
		return frame
	}

	spec := p.analyzer.Analyze(window)
	frame.Bins = spec.Bins
	frame.Magnitude = spec.Magnitude
	frame.MajorPeak = spec.MajorPeak
	frame.Beat = p.beat.Observe(p.beat.Energy(p.analyzer.Magnitudes()))
	frame.ZeroCrossings = ZeroCrossings(window)
	return frame
}

// Analyzer returns the spectral analyzer.
func (p *Processor) Analyzer() *Analyzer { return p.analyzer }
