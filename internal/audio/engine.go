// SPDX-License-Identifier: MIT
/*
Package audio captures audio and feeds it into the sample buffer. It holds:
- The PortAudio capture engine (live input)
- Device discovery and selection, preferring monitor devices
- The WAV recording tap
- A file replay source for wav, mp3 and ogg input

Thread Safety:
- The capture callback only copies into the sample buffer and, when
  recording, into the recorder queue. Neither blocks.
- The recorder is swapped in and out through an atomic pointer.
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"audiosync/internal/config"
	applog "audiosync/internal/log"
)

// Pusher is the producer side of the sample buffer.
type Pusher interface {
	Push(samples []float32, channels int, sampleRate float64) bool
}

// Engine owns a PortAudio input stream and forwards every callback block to
// a Pusher.
type Engine struct {
	cfg config.AudioConfig
	out Pusher

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	channels     int
	sampleRate   float64

	recorder atomic.Pointer[Recorder]
	blocks   atomic.Uint64
}

// NewEngine resolves the configured input device. PortAudio must already be
// initialised.
func NewEngine(cfg config.AudioConfig, out Pusher) (*Engine, error) {
	device, err := InputDevice(cfg.InputDevice, cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	channels := min(cfg.InputChannels, device.MaxInputChannels)
	if channels <= 0 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}

	e := &Engine{
		cfg:         cfg,
		out:         out,
		inputDevice: device,
		channels:    channels,
		sampleRate:  cfg.SampleRate,
	}
	if cfg.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}
	return e, nil
}

// Start opens and starts the input stream. From here on the callback runs on
// PortAudio's thread.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %q: %w", e.inputDevice.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	e.inputStream = stream

	applog.WithFields(applog.Fields{
		"device":      e.inputDevice.Name,
		"channels":    e.channels,
		"sample_rate": e.sampleRate,
		"frames":      e.cfg.FramesPerBuffer,
		"latency":     e.inputLatency,
	}).Info("Capture started")
	return nil
}

// Stop stops and closes the input stream. Calling it on a stopped engine is a
// no-op.
func (e *Engine) Stop() error {
	if e.inputStream == nil {
		return nil
	}
	stream := e.inputStream
	e.inputStream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// processInputStream is the capture callback. It copies the block out and
// returns; nothing here waits on the processing side.
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.out.Push(in, e.channels, e.sampleRate)
	e.blocks.Add(1)
	if rec := e.recorder.Load(); rec != nil {
		rec.Write(in)
	}
}

// StartRecording attaches a WAV recorder to the capture callback.
func (e *Engine) StartRecording(path string, bitDepth int) (*Recorder, error) {
	if e.recorder.Load() != nil {
		return nil, fmt.Errorf("already recording")
	}
	rec, err := NewRecorder(path, int(e.sampleRate), e.channels, bitDepth)
	if err != nil {
		return nil, err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.Close()
		return nil, fmt.Errorf("already recording")
	}
	return rec, nil
}

// StopRecording detaches and finalises the recorder, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	return rec.Close()
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		e.Stop()
		return err
	}
	return e.Stop()
}

// DeviceName returns the name of the capture device.
func (e *Engine) DeviceName() string { return e.inputDevice.Name }

// Channels returns the number of captured channels.
func (e *Engine) Channels() int { return e.channels }

// SampleRate returns the capture rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Blocks returns the number of callback blocks received.
func (e *Engine) Blocks() uint64 { return e.blocks.Load() }
