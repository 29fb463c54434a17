// SPDX-License-Identifier: MIT
package analysis

// SpectralFrame is the feature set derived from one analysis window.
type SpectralFrame struct {
	SampleRaw     float64        `json:"sampleRaw"`     // AGC output, 0..255.
	SampleSmooth  float64        `json:"sampleSmth"`    // Smoothed AGC output, 0..255.
	Beat          bool           `json:"samplePeak"`    // Sub-band onset detected.
	Counter       uint8          `json:"frameCounter"`  // Rolling frame number, set by the pipeline.
	Bins          [NumBins]uint8 `json:"fftResult"`     // Log-spaced bins, 0..255.
	ZeroCrossings uint16         `json:"zeroCrossings"` // Sign changes in the window.
	Magnitude     float64        `json:"fftMagnitude"`  // Unscaled overall magnitude.
	MajorPeak     float64        `json:"fftMajorPeak"`  // Hz.
}
