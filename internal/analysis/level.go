// SPDX-License-Identifier: MIT
package analysis

import "math"

// Level tracker defaults.
const (
	DefaultLevelFloor       = 0.002 // Lowest ceiling and slow envelope (linear RMS).
	DefaultLevelReleaseRate = 0.995 // Per-hop ceiling decay, about 3 s half-life at 47 hops/s.
	DefaultLevelHeadroom    = 2.0   // Release target as a multiple of the slow envelope.

	fastCoeff   = 0.6  // Fast envelope weight of the new level.
	slowCoeff   = 0.02 // Slow envelope weight of the new level.
	smoothDecay = 0.7  // Weight of the previous smoothed output.
)

// LevelTracker is an automatic gain control over per-window RMS levels. It
// keeps a fast and a slow envelope and a normalization ceiling. The ceiling
// jumps to the fast envelope whenever it is exceeded and otherwise decays by
// at most a fixed ratio per hop towards a target derived from the slow
// envelope, never below the floor.
type LevelTracker struct {
	fast    float64
	slow    float64
	ceiling float64
	smooth  float64

	floor    float64
	release  float64
	headroom float64
}

// NewLevelTracker returns a tracker. Non-positive floor and release values
// select the defaults.
func NewLevelTracker(floor, releaseRate float64) *LevelTracker {
	if floor <= 0 {
		floor = DefaultLevelFloor
	}
	if releaseRate <= 0 || releaseRate >= 1 {
		releaseRate = DefaultLevelReleaseRate
	}
	return &LevelTracker{
		slow:     floor,
		ceiling:  floor,
		floor:    floor,
		release:  releaseRate,
		headroom: DefaultLevelHeadroom,
	}
}

// Update advances the tracker by one hop with the window's RMS level and
// returns the raw and smoothed outputs, both within [0, 255].
func (t *LevelTracker) Update(rms float64) (raw, smooth float64) {
	if math.IsNaN(rms) || rms < 0 {
		rms = 0
	}

	t.fast += fastCoeff * (rms - t.fast)
	t.slow += slowCoeff * (rms - t.slow)
	t.slow = max(t.slow, t.floor)

	if t.fast > t.ceiling {
		t.ceiling = t.fast
	} else {
		target := max(t.slow*t.headroom, t.floor)
		t.ceiling = min(t.ceiling, max(t.ceiling*t.release, target))
	}

	raw = clamp255(t.fast / t.ceiling * 255)
	t.smooth = clamp255(t.smooth*smoothDecay + raw*(1-smoothDecay))
	return raw, t.smooth
}

// Ceiling returns the current normalization ceiling.
func (t *LevelTracker) Ceiling() float64 { return t.ceiling }

// Slow returns the slow envelope.
func (t *LevelTracker) Slow() float64 { return t.slow }

func clamp255(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return v
	}
}
