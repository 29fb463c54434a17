// SPDX-License-Identifier: MIT
package analysis

import "math"

// HFT90D flat-top coefficients.
var hft90d = [...]float64{1, 1.942604, 1.340318, 0.440811, 0.043097}

// FlatTop returns an n-point HFT90D flat-top window divided by its peak so
// that every coefficient lies in [0, 1]. The negative lobes of the closed form
// are clamped to zero. The table is symmetric.
func FlatTop(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}

	var peak float64
	for i := 0; i < (n+1)/2; i++ {
		z := 2 * math.Pi * float64(i) / float64(n-1)
		v := hft90d[0]
		for k := 1; k < len(hft90d); k++ {
			c := hft90d[k] * math.Cos(float64(k)*z)
			if k%2 == 1 {
				v -= c
			} else {
				v += c
			}
		}
		w[i] = v
		peak = max(peak, v)
	}

	for i := 0; i < (n+1)/2; i++ {
		v := max(w[i]/peak, 0)
		w[i] = min(v, 1)
		w[n-1-i] = w[i]
	}
	return w
}
