// SPDX-License-Identifier: MIT
package analysis

import (
	"gonum.org/v1/gonum/stat"
)

// Beat detector defaults.
const (
	BeatLowHz  = 100 // Lower edge of the beat sub-band.
	BeatHighHz = 500 // Upper edge of the beat sub-band.

	DefaultBeatHistory     = 43  // About one second of hops at 48 kHz.
	DefaultBeatSensitivity = 1.5 // k in mean + k*stddev.
	DefaultBeatRefractory  = 8   // Minimum hops between beats.

	minBeatHistory = 8    // Windows observed before any beat can fire.
	minBeatEnergy  = 1e-6 // Sub-band energy below this never counts as a beat.
	minBeatRatio   = 1.2  // Energy must also exceed the mean by this factor.
)

// BeatDetector flags windows whose 100-500 Hz energy stands out from the
// recent history by more than Sensitivity standard deviations, with at most
// one beat per refractory period. The energy must also be at least 1.2 times
// the mean, which keeps steady signals with near-zero variance quiet.
type BeatDetector struct {
	history     []float64 // ring of recent energies
	next        int
	filled      int
	sensitivity float64
	refractory  int
	sinceBeat   int
	band        binRange
}

// NewBeatDetector returns a detector for spectra of the given analyzer layout.
// Non-positive sensitivity or refractory values select the defaults.
func NewBeatDetector(a *Analyzer, sensitivity float64, refractory int) *BeatDetector {
	if sensitivity <= 0 {
		sensitivity = DefaultBeatSensitivity
	}
	if refractory <= 0 {
		refractory = DefaultBeatRefractory
	}
	return &BeatDetector{
		history:     make([]float64, DefaultBeatHistory),
		sensitivity: sensitivity,
		refractory:  refractory,
		band:        a.binsBetween(BeatLowHz, BeatHighHz),
	}
}

// Energy returns the summed squared magnitude of the beat sub-band.
func (d *BeatDetector) Energy(magnitudes []float64) float64 {
	var e float64
	for _, m := range magnitudes[d.band.lo:d.band.hi] {
		e += m * m
	}
	return e
}

// Observe advances the detector by one hop with the sub-band energy of the
// current window and reports whether it is a beat. The threshold is computed
// from the history before the current energy is added to it.
func (d *BeatDetector) Observe(energy float64) bool {
	d.sinceBeat++

	beat := false
	if d.filled >= minBeatHistory && energy > minBeatEnergy && d.sinceBeat >= d.refractory {
		mean, std := stat.MeanStdDev(d.history[:d.filled], nil)
		if energy > mean+d.sensitivity*std && energy > mean*minBeatRatio {
			beat = true
			d.sinceBeat = 0
		}
	}

	d.history[d.next] = energy
	d.next = (d.next + 1) % len(d.history)
	if d.filled < len(d.history) {
		d.filled++
	}
	return beat
}

// Refractory returns the minimum number of hops between beats.
func (d *BeatDetector) Refractory() int { return d.refractory }
