// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gordonklaus/portaudio"

	"audiosync/internal/buffer"
	"audiosync/internal/config"
)

func newTestEngine(out Pusher) *Engine {
	return &Engine{
		cfg:         config.AudioConfig{FramesPerBuffer: testFrameSize, SampleRate: testSampleRate, InputChannels: 2},
		out:         out,
		inputDevice: &portaudio.DeviceInfo{Name: "test"},
		channels:    2,
		sampleRate:  testSampleRate,
	}
}

func TestNewEngineClampsChannels(t *testing.T) {
	mockPortAudio(t, hostInfos(), nil)

	cfg := config.Default().Audio
	cfg.InputChannels = 2
	cfg.InputDevice = 0
	cfg.LowLatency = true

	e, err := NewEngine(cfg, buffer.New(0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.Channels() != 2 || e.DeviceName() != "pulse" {
		t.Errorf("engine = %d channels on %q", e.Channels(), e.DeviceName())
	}
	if e.inputLatency != hostInfos()[0].DefaultLowInputLatency {
		t.Errorf("low latency not selected: %v", e.inputLatency)
	}

	mono := []*portaudio.DeviceInfo{{Name: "mic", MaxInputChannels: 1, DefaultSampleRate: 48000}}
	mockPortAudio(t, mono, mono[0])
	cfg.InputDevice = config.DefaultDeviceID
	e, err = NewEngine(cfg, buffer.New(0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.Channels() != 1 {
		t.Errorf("Channels() = %d, want 1", e.Channels())
	}
}

func TestNewEngineDeviceError(t *testing.T) {
	mockPortAudio(t, hostInfos(), nil)
	cfg := config.Default().Audio
	cfg.InputDevice = 1 // output only
	if _, err := NewEngine(cfg, buffer.New(0)); err == nil {
		t.Error("expected error for output-only device")
	}
}

func TestCallbackPushesBlocks(t *testing.T) {
	buf := buffer.New(buffer.DefaultCapacity)
	e := newTestEngine(buf)

	in := make([]float32, testFrameSize*2)
	in[0] = 0.25
	e.processInputStream(in)
	in[0] = 0.75 // the buffer must hold its own copy

	blk, err := buf.Pop(context.Background())
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if blk.Samples[0] != 0.25 || blk.Channels != 2 || blk.SampleRate != testSampleRate {
		t.Errorf("block = %v.. ch=%d rate=%v", blk.Samples[0], blk.Channels, blk.SampleRate)
	}
	if e.Blocks() != 1 {
		t.Errorf("Blocks() = %d, want 1", e.Blocks())
	}
}

func TestCallbackNeverBlocksWhenFull(t *testing.T) {
	buf := buffer.New(2)
	e := newTestEngine(buf)
	in := make([]float32, 8)

	for range 10 {
		e.processInputStream(in)
	}
	if buf.Dropped() != 8 {
		t.Errorf("Dropped() = %d, want 8", buf.Dropped())
	}
}

func TestEngineRecordingTap(t *testing.T) {
	e := newTestEngine(buffer.New(buffer.DefaultCapacity))
	path := filepath.Join(t.TempDir(), "tap.wav")

	rec, err := e.StartRecording(path, 16)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := e.StartRecording(path, 16); err == nil {
		t.Error("second StartRecording should fail")
	}

	in := make([]float32, testFrameSize*2)
	for range 3 {
		e.processInputStream(in)
	}
	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording when idle: %v", err)
	}
	if rec.Frames() != 3*testFrameSize {
		t.Errorf("recorded %d frames, want %d", rec.Frames(), 3*testFrameSize)
	}

	dec, data := decodeWAV(t, path)
	if int(dec.NumChans) != e.Channels() || len(data) != 3*len(in) {
		t.Errorf("recording has %d ch, %d samples", dec.NumChans, len(data))
	}
}

func TestEngineCloseWithoutStream(t *testing.T) {
	e := newTestEngine(buffer.New(0))
	if err := e.Close(); err != nil {
		t.Errorf("Close on idle engine: %v", err)
	}
}

func BenchmarkCallback(b *testing.B) {
	e := newTestEngine(buffer.New(buffer.DefaultCapacity))
	in := make([]float32, testFrameSize*2)
	b.ReportAllocs()
	for b.Loop() {
		e.processInputStream(in)
	}
}
