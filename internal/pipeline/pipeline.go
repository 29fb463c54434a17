// SPDX-License-Identifier: MIT

/*
Package pipeline runs the processing side of the streamer. A single goroutine
pops sample blocks, downmixes them, slides the analysis window and, on every
hop boundary, analyses the window, encodes the frame and hands it to the sink.

All analysis state (window, AGC, beat history, frame counter) lives in the
Pipeline and is only touched by Run, so none of it is locked. The sample
buffer is the only value shared with the capture side.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"audiosync/internal/analysis"
	"audiosync/internal/buffer"
	applog "audiosync/internal/log"
	"audiosync/internal/metrics"
	"audiosync/internal/transport"
	"audiosync/internal/transport/udp"
)

// DefaultStatsInterval is how often Run logs throughput at Debug level.
const DefaultStatsInterval = 5 * time.Second

// Source is the consumer side of the sample buffer.
type Source interface {
	Pop(ctx context.Context) (buffer.SampleBlock, error)
	Dropped() uint64
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Frames        uint64
	Beats         uint64
	Malformed     uint64
	HopsSkipped   uint64
	SendErrors    uint64
	BlocksDropped uint64
}

// Pipeline owns the per-hop analysis state.
type Pipeline struct {
	src     Source
	sink    transport.Sink
	metrics *metrics.Metrics

	sampleRate float64
	mono       []float64
	acc        *analysis.Accumulator
	proc       *analysis.Processor
	packet     []byte
	counter    uint8

	lastSkipped uint64
	rateWarned  bool

	// StatsInterval overrides DefaultStatsInterval when positive. Set it
	// before Run.
	StatsInterval time.Duration

	frames     atomic.Uint64
	beats      atomic.Uint64
	malformed  atomic.Uint64
	skipped    atomic.Uint64
	sendErrors atomic.Uint64
}

// New wires a pipeline. A nil m records into a no-op meter.
func New(src Source, sink transport.Sink, m *metrics.Metrics, opts analysis.Options) (*Pipeline, error) {
	if src == nil || sink == nil {
		return nil, errors.New("pipeline: source and sink are required")
	}
	if m == nil {
		var err error
		if m, err = metrics.NewMetrics(noop.NewMeterProvider()); err != nil {
			return nil, err
		}
	}

	proc, err := analysis.NewProcessor(opts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	acc, err := analysis.NewAccumulator(analysis.FFTSize, analysis.HopSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Pipeline{
		src:        src,
		sink:       sink,
		metrics:    m,
		sampleRate: proc.Analyzer().SampleRate(),
		mono:       make([]float64, 0, analysis.HopSize),
		acc:        acc,
		proc:       proc,
		packet:     make([]byte, 0, udp.PacketSize),
	}, nil
}

// Run processes blocks until ctx is done or the source is closed and drained.
// Both are a normal shutdown and return nil. A frame is either sent whole or
// not at all.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := p.StatsInterval
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go p.logStats(statsCtx, interval)

	for {
		blk, err := p.src.Pop(ctx)
		switch {
		case err == nil:
		case errors.Is(err, buffer.ErrClosed), ctx.Err() != nil:
			applog.WithFields(applog.Fields{
				"frames":  p.frames.Load(),
				"dropped": p.src.Dropped(),
			}).Debug("Processing loop stopped")
			return nil
		default:
			return fmt.Errorf("pipeline: pop: %w", err)
		}
		p.processBlock(ctx, blk)
	}
}

func (p *Pipeline) processBlock(ctx context.Context, blk buffer.SampleBlock) {
	if blk.SampleRate != 0 && blk.SampleRate != p.sampleRate {
		if !p.rateWarned {
			applog.Warnf("pipeline: Discarding blocks at %.0f Hz, analysis runs at %.0f Hz", blk.SampleRate, p.sampleRate)
			p.rateWarned = true
		}
		p.reject(ctx)
		return
	}

	mono, err := analysis.Downmix(p.mono, blk.Samples, blk.Channels)
	p.mono = mono
	if err != nil {
		applog.WithError(err).WithField("samples", len(blk.Samples)).WithField("channels", blk.Channels).Debug("Discarding block")
		p.reject(ctx)
		return
	}

	window, ok := p.acc.Push(mono)
	if s := p.acc.Skipped(); s != p.lastSkipped {
		delta := s - p.lastSkipped
		p.lastSkipped = s
		p.skipped.Add(delta)
		p.metrics.HopsSkipped.Add(ctx, int64(delta))
	}
	if !ok {
		return
	}

	start := time.Now()
	frame := p.proc.Process(window)
	frame.Counter = p.counter
	p.counter++
	p.packet = udp.AppendPacket(p.packet[:0], &frame)
	p.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())

	p.frames.Add(1)
	p.metrics.FramesEmitted.Add(ctx, 1)
	if frame.Beat {
		p.beats.Add(1)
		p.metrics.Beats.Add(ctx, 1)
	}

	if err := p.sink.Send(p.packet, &frame); err != nil {
		p.sendErrors.Add(1)
		p.metrics.SendErrors.Add(ctx, 1)
		applog.WithError(err).WithField("frame", frame.Counter).Debug("Send failed")
	}
}

func (p *Pipeline) reject(ctx context.Context) {
	p.malformed.Add(1)
	p.metrics.BlocksMalformed.Add(ctx, 1)
}

func (p *Pipeline) logStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFrames uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !applog.Enabled(applog.LevelDebug) {
			continue
		}
		s := p.Stats()
		applog.WithFields(applog.Fields{
			"fps":         float64(s.Frames-lastFrames) / interval.Seconds(),
			"frames":      s.Frames,
			"beats":       s.Beats,
			"dropped":     s.BlocksDropped,
			"malformed":   s.Malformed,
			"skipped":     s.HopsSkipped,
			"send_errors": s.SendErrors,
		}).Debug("Pipeline stats")
		lastFrames = s.Frames
	}
}

// Stats returns the current counters. Safe to call from any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:        p.frames.Load(),
		Beats:         p.beats.Load(),
		Malformed:     p.malformed.Load(),
		HopsSkipped:   p.skipped.Load(),
		SendErrors:    p.sendErrors.Load(),
		BlocksDropped: p.src.Dropped(),
	}
}
