// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
)

var (
	// ErrNoChannels is returned for blocks that claim zero channels.
	ErrNoChannels = errors.New("downmix: channel count must be positive")
	// ErrMisaligned is returned when the block length is not a whole number of frames.
	ErrMisaligned = errors.New("downmix: block length is not a multiple of the channel count")
)

// Downmix averages each interleaved frame of samples into one mono sample and
// appends the result to dst[:0]. A single channel passes through unchanged.
// NaN and infinite samples are replaced by silence so that one bad value cannot
// poison the analysis state.
func Downmix(dst []float64, samples []float32, channels int) ([]float64, error) {
	if channels <= 0 {
		return dst[:0], ErrNoChannels
	}
	if len(samples)%channels != 0 {
		return dst[:0], ErrMisaligned
	}

	dst = dst[:0]
	if channels == 1 {
		for _, s := range samples {
			dst = append(dst, finite(float64(s)))
		}
		return dst, nil
	}

	scale := 1.0 / float64(channels)
	for i := 0; i < len(samples); i += channels {
		var sum float64
		for _, s := range samples[i : i+channels] {
			sum += finite(float64(s))
		}
		dst = append(dst, sum*scale)
	}
	return dst, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
