// SPDX-License-Identifier: MIT

// Package metrics owns the OpenTelemetry instruments recorded by the capture
// and analysis pipeline. Instruments are created from a MeterProvider so that
// tests can read them back through a ManualReader while the running binary
// exports them to Prometheus.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "audiosync"

// BufferStats is the read side of the sample buffer counters.
type BufferStats interface {
	Pushed() uint64
	Dropped() uint64
	Len() int
}

// Metrics holds the pipeline instruments.
type Metrics struct {
	meter metric.Meter

	// Callback-driven, fed from the sample buffer.
	BlocksPushed  metric.Int64ObservableCounter
	BlocksDropped metric.Int64ObservableCounter
	BufferDepth   metric.Int64ObservableGauge

	BlocksMalformed metric.Int64Counter
	HopsSkipped     metric.Int64Counter
	FramesEmitted   metric.Int64Counter
	Beats           metric.Int64Counter
	SendErrors      metric.Int64Counter

	AnalysisDuration metric.Float64Histogram
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	out := &Metrics{meter: m}
	var err error

	if out.BlocksPushed, err = m.Int64ObservableCounter("audiosync.buffer.blocks_pushed",
		metric.WithDescription("Sample blocks accepted from the capture callback."),
	); err != nil {
		return nil, fmt.Errorf("metrics: blocks_pushed: %w", err)
	}
	if out.BlocksDropped, err = m.Int64ObservableCounter("audiosync.buffer.blocks_dropped",
		metric.WithDescription("Sample blocks evicted because the buffer was full."),
	); err != nil {
		return nil, fmt.Errorf("metrics: blocks_dropped: %w", err)
	}
	if out.BufferDepth, err = m.Int64ObservableGauge("audiosync.buffer.depth",
		metric.WithDescription("Sample blocks waiting for the processing loop."),
	); err != nil {
		return nil, fmt.Errorf("metrics: buffer depth: %w", err)
	}

	if out.BlocksMalformed, err = m.Int64Counter("audiosync.pipeline.blocks_malformed",
		metric.WithDescription("Sample blocks rejected before analysis."),
	); err != nil {
		return nil, fmt.Errorf("metrics: blocks_malformed: %w", err)
	}
	if out.HopsSkipped, err = m.Int64Counter("audiosync.pipeline.hops_skipped",
		metric.WithDescription("Hops completed without emitting a frame."),
	); err != nil {
		return nil, fmt.Errorf("metrics: hops_skipped: %w", err)
	}
	if out.FramesEmitted, err = m.Int64Counter("audiosync.pipeline.frames",
		metric.WithDescription("Spectral frames encoded and handed to the sink."),
	); err != nil {
		return nil, fmt.Errorf("metrics: frames: %w", err)
	}
	if out.Beats, err = m.Int64Counter("audiosync.pipeline.beats",
		metric.WithDescription("Frames flagged as a beat."),
	); err != nil {
		return nil, fmt.Errorf("metrics: beats: %w", err)
	}
	if out.SendErrors, err = m.Int64Counter("audiosync.transport.send_errors",
		metric.WithDescription("Frames the sink failed to deliver."),
	); err != nil {
		return nil, fmt.Errorf("metrics: send_errors: %w", err)
	}

	if out.AnalysisDuration, err = m.Float64Histogram("audiosync.pipeline.analysis.duration",
		metric.WithDescription("Time spent analysing one window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025),
	); err != nil {
		return nil, fmt.Errorf("metrics: analysis duration: %w", err)
	}

	return out, nil
}

// ObserveBuffer reports the buffer counters on every collection. Unregister
// the returned registration when the buffer goes away.
func (m *Metrics) ObserveBuffer(stats BufferStats) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.BlocksPushed, int64(stats.Pushed()))
		o.ObserveInt64(m.BlocksDropped, int64(stats.Dropped()))
		o.ObserveInt64(m.BufferDepth, int64(stats.Len()))
		return nil
	}, m.BlocksPushed, m.BlocksDropped, m.BufferDepth)
}
