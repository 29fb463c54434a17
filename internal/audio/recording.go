// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "audiosync/internal/log"
)

// recorderQueue is the number of blocks the capture side may get ahead of the
// encoder before blocks are dropped from the recording.
const recorderQueue = 64

// ErrRecorderClosed is returned by Write after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder writes interleaved float32 blocks to a PCM WAV file. Write copies
// the block and returns immediately; encoding happens on the Recorder's own
// goroutine so a slow disk never stalls the caller.
type Recorder struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	channels int
	scale    float64

	mu     sync.Mutex // guards closed and sends on queue
	closed bool
	queue  chan []float32
	free   chan []float32
	done   chan struct{}
	err    error // first encode error, read after done

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates path and starts the encoder goroutine. bitDepth must be
// 16, 24 or 32.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid recording format: %d Hz, %d channels", sampleRate, channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r := &Recorder{
		path:     path,
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels: channels,
		scale:    math.Exp2(float64(bitDepth-1)) - 1,
		queue:    make(chan []float32, recorderQueue),
		free:     make(chan []float32, recorderQueue),
		done:     make(chan struct{}),
	}
	go r.run(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	})
	return r, nil
}

// Path returns the output file name.
func (r *Recorder) Path() string { return r.path }

// Write queues a copy of samples. It reports false when the block was dropped
// because the encoder is behind, or the recorder is closed.
func (r *Recorder) Write(samples []float32) bool {
	var buf []float32
	select {
	case buf = <-r.free:
	default:
	}
	buf = append(buf[:0], samples...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- buf:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func (r *Recorder) run(out *audio.IntBuffer) {
	defer close(r.done)
	for block := range r.queue {
		if r.err == nil {
			out.Data = out.Data[:0]
			for _, s := range block {
				out.Data = append(out.Data, r.toInt(s))
			}
			if err := r.encoder.Write(out); err != nil {
				r.err = err
				applog.WithError(err).WithField("file", r.path).Error("Recording write failed")
			} else {
				r.written.Add(uint64(len(block) / r.channels))
			}
		}
		select {
		case r.free <- block:
		default:
		}
	}
}

func (r *Recorder) toInt(s float32) int {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int(math.Round(v * r.scale))
}

// Frames returns the number of frames encoded so far.
func (r *Recorder) Frames() uint64 { return r.written.Load() }

// Dropped returns the number of blocks that did not make it into the file.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close flushes pending blocks, finalises the WAV header and closes the file.
// It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return errors.Join(r.err, r.encoder.Close(), r.file.Close())
}
