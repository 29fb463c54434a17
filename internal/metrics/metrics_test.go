// SPDX-License-Identifier: MIT
package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", name, m.Data)
	require.Len(t, sum.DataPoints, 1)
	return sum.DataPoints[0].Value
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesEmitted.Add(ctx, 3)
	m.HopsSkipped.Add(ctx, 1)
	m.BlocksMalformed.Add(ctx, 2)
	m.SendErrors.Add(ctx, 4)
	m.Beats.Add(ctx, 5)

	rm := collect(t, reader)
	assert.Equal(t, int64(3), sumValue(t, rm, "audiosync.pipeline.frames"))
	assert.Equal(t, int64(1), sumValue(t, rm, "audiosync.pipeline.hops_skipped"))
	assert.Equal(t, int64(2), sumValue(t, rm, "audiosync.pipeline.blocks_malformed"))
	assert.Equal(t, int64(4), sumValue(t, rm, "audiosync.transport.send_errors"))
	assert.Equal(t, int64(5), sumValue(t, rm, "audiosync.pipeline.beats"))
}

func TestAnalysisDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.AnalysisDuration.Record(context.Background(), 0.0003)
	m.AnalysisDuration.Record(context.Background(), 0.002)

	rm := collect(t, reader)
	got := findMetric(rm, "audiosync.pipeline.analysis.duration")
	require.NotNil(t, got)
	assert.Equal(t, "s", got.Unit)
	hist, ok := got.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

type fakeStats struct{ pushed, dropped uint64 }

func (f fakeStats) Pushed() uint64  { return f.pushed }
func (f fakeStats) Dropped() uint64 { return f.dropped }
func (f fakeStats) Len() int        { return 3 }

func TestObserveBuffer(t *testing.T) {
	m, reader := newTestMetrics(t)
	reg, err := m.ObserveBuffer(fakeStats{pushed: 21, dropped: 13})
	require.NoError(t, err)
	defer reg.Unregister()

	rm := collect(t, reader)
	assert.Equal(t, int64(21), sumValue(t, rm, "audiosync.buffer.blocks_pushed"))
	assert.Equal(t, int64(13), sumValue(t, rm, "audiosync.buffer.blocks_dropped"))

	depth := findMetric(rm, "audiosync.buffer.depth")
	require.NotNil(t, depth)
	gauge, ok := depth.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}

func TestServerServesScrapes(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr().String() + Path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenBindError(t *testing.T) {
	_, err := Listen("256.0.0.1:0")
	assert.Error(t, err)
}
