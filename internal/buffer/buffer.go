// SPDX-License-Identifier: MIT
package buffer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of blocks held between the capture callback
// and the processing loop.
const DefaultCapacity = 8

// ErrClosed is returned by Pop once the buffer is closed and drained.
var ErrClosed = errors.New("sample buffer closed")

// SampleBlock is one capture callback's worth of interleaved samples.
type SampleBlock struct {
	Samples    []float32 // Interleaved samples, len = frames * Channels.
	Channels   int       // Channel count of the interleaved data.
	SampleRate float64   // Capture rate in Hz.
}

// SampleBuffer is a bounded multi-producer, single-consumer queue of sample
// blocks. Push never blocks: when all slots are full the oldest pending block
// is evicted and the drop counter is incremented. Pop blocks until a block is
// available, the context is done or the buffer is closed.
//
// Slot storage is owned by the buffer. Push copies the caller's samples, and
// the block returned by Pop stays valid until the next call to Pop.
type SampleBuffer struct {
	mu    sync.Mutex
	slots []SampleBlock
	head  int // index of the oldest pending block
	count int // number of pending blocks
	spare []float32

	notify chan struct{} // cap 1, signalled on push
	done   chan struct{} // closed by Close
	closed bool

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// New creates a buffer with the given number of slots. Non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SampleBuffer{
		slots:  make([]SampleBlock, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push enqueues a copy of samples. It reports whether an older block had to be
// evicted to make room. Pushing to a closed buffer is a no-op.
func (b *SampleBuffer) Push(samples []float32, channels int, sampleRate float64) (evicted bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}

	if b.count == len(b.slots) {
		// Full: the oldest slot is reused for the newest block.
		b.head = (b.head + 1) % len(b.slots)
		b.count--
		evicted = true
	}

	idx := (b.head + b.count) % len(b.slots)
	slot := &b.slots[idx]
	slot.Samples = append(slot.Samples[:0], samples...)
	slot.Channels = channels
	slot.SampleRate = sampleRate
	b.count++
	b.mu.Unlock()

	b.pushed.Add(1)
	if evicted {
		b.dropped.Add(1)
	}

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return evicted
}

// Pop removes and returns the oldest pending block, waiting if none is
// available. It returns ErrClosed after Close once all pending blocks have been
// consumed, or ctx.Err() if the context ends first.
func (b *SampleBuffer) Pop(ctx context.Context) (SampleBlock, error) {
	for {
		b.mu.Lock()
		if b.count > 0 {
			slot := &b.slots[b.head]
			out := *slot
			// Hand the slot's storage to the caller and give the slot the
			// storage returned by the previous Pop.
			slot.Samples = b.spare[:0]
			b.spare = out.Samples
			b.head = (b.head + 1) % len(b.slots)
			b.count--
			b.mu.Unlock()
			return out, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return SampleBlock{}, ErrClosed
		}

		select {
		case <-b.notify:
		case <-b.done:
		case <-ctx.Done():
			return SampleBlock{}, ctx.Err()
		}
	}
}

// Close wakes any waiting consumer. Blocks already queued can still be popped.
func (b *SampleBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Len returns the number of pending blocks.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the slot count.
func (b *SampleBuffer) Cap() int { return len(b.slots) }

// Dropped returns the number of blocks evicted by overflow since creation.
func (b *SampleBuffer) Dropped() uint64 { return b.dropped.Load() }

// Pushed returns the number of blocks accepted by Push since creation.
func (b *SampleBuffer) Pushed() uint64 { return b.pushed.Load() }
