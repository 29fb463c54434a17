// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"audiosync/pkg/bitint"
)

// Accumulator slides a fixed-length analysis window over a stream of mono
// chunks. A window is emitted every time Hop new samples have arrived. The
// window starts as silence, so the first emission is zero-padded at the front.
//
// When a single chunk completes more than one hop, only the most recent window
// is emitted and the intermediate hops are counted as skipped. Memory use is
// fixed at construction.
type Accumulator struct {
	size    int
	hop     int
	window  []float64 // current window, oldest sample first
	scratch []float64 // next window, swapped with window on emit
	pending []float64 // samples received since the last hop boundary
	skipped uint64
}

// NewAccumulator returns an accumulator for windows of size samples advancing
// by hop samples. Both must be powers of two and hop must not exceed size.
func NewAccumulator(size, hop int) (*Accumulator, error) {
	if !bitint.IsPowerOfTwo(size) || !bitint.IsPowerOfTwo(hop) {
		return nil, fmt.Errorf("window size %d and hop %d must be powers of 2", size, hop)
	}
	if hop > size {
		return nil, fmt.Errorf("hop %d exceeds window size %d", hop, size)
	}
	return &Accumulator{
		size:    size,
		hop:     hop,
		window:  make([]float64, size),
		scratch: make([]float64, size),
		pending: make([]float64, 0, hop),
	}, nil
}

// Push adds a chunk of mono samples. It returns the current window and true
// when at least one hop boundary was crossed. The returned slice is owned by
// the accumulator and is only valid until the next call to Push.
func (a *Accumulator) Push(chunk []float64) ([]float64, bool) {
	total := len(a.pending) + len(chunk)
	if total < a.hop {
		a.pending = append(a.pending, chunk...)
		return nil, false
	}

	hops := total / a.hop
	used := hops*a.hop - len(a.pending) // samples of chunk that belong to complete hops

	// Build the newest window back to front: chunk tail, then pending, then
	// whatever still fits from the previous window.
	dst := a.scratch
	i := a.size

	n := min(used, i)
	copy(dst[i-n:i], chunk[used-n:used])
	i -= n

	n = min(len(a.pending), i)
	copy(dst[i-n:i], a.pending[len(a.pending)-n:])
	i -= n

	copy(dst[:i], a.window[a.size-i:])

	a.window, a.scratch = a.scratch, a.window
	a.pending = append(a.pending[:0], chunk[used:]...)
	a.skipped += uint64(hops - 1)

	return a.window, true
}

// Skipped returns the number of hop boundaries that were folded into a later
// window because their samples arrived in a single chunk.
func (a *Accumulator) Skipped() uint64 { return a.skipped }

// Size returns the window length.
func (a *Accumulator) Size() int { return a.size }

// Hop returns the number of new samples per emitted window.
func (a *Accumulator) Hop() int { return a.hop }

// Reset clears the window back to silence.
func (a *Accumulator) Reset() {
	clear(a.window)
	a.pending = a.pending[:0]
	a.skipped = 0
}
