// SPDX-License-Identifier: MIT

/*
Package bitint holds the power-of-two helpers used to size FFT windows,
hops and replay chunks.

	size := bitint.NextPowerOfTwo(rate / 100) // 480 -> 512
	ok := bitint.IsPowerOfTwo(fftSize)

NextPowerOfTwo works on size-1 so that exact powers of two map to
themselves: for 8, bits.Len(7) is 3 and 1<<3 is 8. Without the
subtraction bits.Len(8) is 4 and the result would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of two n, and -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
