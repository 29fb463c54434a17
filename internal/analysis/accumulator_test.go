// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp returns n consecutive values starting at start.
func ramp(start, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

func TestAccumulatorRejectsBadSizes(t *testing.T) {
	_, err := NewAccumulator(2000, 1000)
	assert.Error(t, err)
	_, err = NewAccumulator(1024, 2048)
	assert.Error(t, err)
}

func TestAccumulatorColdStart(t *testing.T) {
	acc, err := NewAccumulator(FFTSize, HopSize)
	require.NoError(t, err)

	_, ok := acc.Push(ramp(1, 512))
	assert.False(t, ok, "half a hop must not emit")

	w, ok := acc.Push(ramp(513, 512))
	require.True(t, ok)
	require.Len(t, w, FFTSize)

	for i := 0; i < FFTSize-HopSize; i++ {
		require.Zero(t, w[i], "leading half is zero padding")
	}
	assert.Equal(t, ramp(1, HopSize), w[FFTSize-HopSize:])
}

func TestAccumulatorSlidesByHop(t *testing.T) {
	acc, err := NewAccumulator(FFTSize, HopSize)
	require.NoError(t, err)

	next := 1
	emitted := 0
	// Uneven chunk sizes exercise the pending carry-over.
	for _, n := range []int{300, 700, 100, 1000, 948, 1024, 77} {
		if w, ok := acc.Push(ramp(next, n)); ok {
			emitted++
			end := next + n - 1 - len(acc.pending)
			assert.Equal(t, float64(end), w[FFTSize-1], "window ends at last complete hop")
			if end >= FFTSize {
				assert.Equal(t, ramp(end-FFTSize+1, FFTSize), w)
			}
		}
		next += n
	}

	assert.Equal(t, (next-1)/HopSize, emitted)
	assert.Zero(t, acc.Skipped())
}

func TestAccumulatorOverflowKeepsNewest(t *testing.T) {
	acc, err := NewAccumulator(FFTSize, HopSize)
	require.NoError(t, err)

	w, ok := acc.Push(ramp(0, 3000))
	require.True(t, ok)
	assert.Equal(t, ramp(0, FFTSize), w)
	assert.Equal(t, uint64(1), acc.Skipped(), "two hops completed, one emitted")
	assert.Len(t, acc.pending, 3000-FFTSize)

	w, ok = acc.Push(ramp(3000, HopSize-(3000-FFTSize)))
	require.True(t, ok)
	assert.Equal(t, ramp(3072-FFTSize, FFTSize), w)

	// A huge burst never grows internal state.
	w, ok = acc.Push(ramp(0, 100000))
	require.True(t, ok)
	assert.Len(t, w, FFTSize)
	assert.Less(t, len(acc.pending), HopSize)
	assert.Equal(t, float64(97*HopSize-1), w[FFTSize-1])
}

func TestAccumulatorSteadyStateAllocs(t *testing.T) {
	acc, err := NewAccumulator(FFTSize, HopSize)
	require.NoError(t, err)
	chunk := make([]float64, 512)

	allocs := testing.AllocsPerRun(200, func() {
		acc.Push(chunk)
	})
	assert.Zero(t, allocs)
}
