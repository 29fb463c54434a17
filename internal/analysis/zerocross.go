// SPDX-License-Identifier: MIT
package analysis

import "math"

// ZeroCrossings counts adjacent sample pairs whose signs differ, treating zero
// as non-negative. The count saturates at math.MaxUint16.
func ZeroCrossings(samples []float64) uint16 {
	var n int
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			n++
		}
	}
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}
