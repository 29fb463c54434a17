// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"audiosync/internal/analysis"
	"audiosync/internal/audio"
	"audiosync/internal/buffer"
	"audiosync/internal/config"
	applog "audiosync/internal/log"
	"audiosync/internal/metrics"
	"audiosync/internal/pipeline"
	"audiosync/internal/transport"
	"audiosync/internal/transport/udp"
	"audiosync/internal/tui"
	"audiosync/pkg/build"
)

// input produces sample blocks until its context ends.
type input interface {
	SampleRate() float64
	Run(ctx context.Context) error
	Close() error
}

// Stream captures (or replays) audio and broadcasts a frame per hop until
// ctx is done or a replayed file ends.
func Stream(ctx context.Context, cfg *config.Config) (err error) {
	buf := buffer.New(buffer.DefaultCapacity)

	in, err := openInput(cfg, buf)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			applog.WithError(cerr).Warn("Closing input")
		}
	}()

	var (
		mp       metric.MeterProvider = otel.GetMeterProvider()
		server   *metrics.Server
		shutdown = func(context.Context) error { return nil }
	)
	if addr := cfg.Metrics.ListenAddress; addr != "" {
		sdkProvider, sd, err := metrics.InitProvider(build.GetBuildFlags().Version)
		if err != nil {
			return fmt.Errorf("failed to initialise metrics: %w", err)
		}
		mp, shutdown = sdkProvider, sd
		if server, err = metrics.Listen(addr); err != nil {
			shutdownMetrics(shutdown)
			return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
		}
	}
	defer shutdownMetrics(shutdown)

	m, err := metrics.NewMetrics(mp)
	if err != nil {
		return err
	}
	reg, err := m.ObserveBuffer(buf)
	if err != nil {
		return err
	}
	defer reg.Unregister()

	sink, err := openSinks(cfg, in.SampleRate())
	if err != nil {
		return err
	}
	defer sink.Close()

	pipe, err := pipeline.New(buf, sink, m, analysis.Options{
		SampleRate:       in.SampleRate(),
		BinCeiling:       cfg.Analysis.BinCeiling,
		BeatSensitivity:  cfg.Analysis.BeatSensitivity,
		BeatRefractory:   cfg.Analysis.BeatRefractory,
		LevelFloor:       cfg.Analysis.LevelFloor,
		LevelReleaseRate: cfg.Analysis.LevelReleaseRate,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// The loop ending (replay finished) stops everything else.
	g.Go(func() error {
		defer cancel()
		return pipe.Run(gctx)
	})
	g.Go(func() error { return in.Run(gctx) })
	if server != nil {
		g.Go(func() error { return server.Serve(gctx) })
	}

	applog.Infof("Streaming on UDP port %d. Press Ctrl+C to stop.", cfg.Transport.UDPPort)
	err = g.Wait()

	stats := pipe.Stats()
	applog.WithFields(applog.Fields{
		"frames":      stats.Frames,
		"beats":       stats.Beats,
		"dropped":     stats.BlocksDropped,
		"malformed":   stats.Malformed,
		"send_errors": stats.SendErrors,
	}).Info("Shutting down")
	return err
}

func openInput(cfg *config.Config, buf *buffer.SampleBuffer) (input, error) {
	if path := cfg.Source.InputFile; path != "" {
		fs, err := audio.OpenFile(path)
		if err != nil {
			return nil, err
		}
		fs.Loop = cfg.Source.Loop
		if cfg.Recording.Enabled {
			applog.Warnf("Recording is ignored while replaying %s", path)
		}
		return &fileInput{src: fs, buf: buf}, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg, buf)
	if err != nil {
		audio.Terminate()
		return nil, err
	}
	return &liveInput{engine: engine, rec: cfg.Recording}, nil
}

func newEngine(cfg *config.Config, buf *buffer.SampleBuffer) (*audio.Engine, error) {
	if cfg.Audio.InputDevice == config.SelectDeviceID {
		sel, err := tui.SelectDevice(audio.HostDevices)
		if err != nil {
			return nil, err
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.DeviceName = ""
		cfg.Audio.SampleRate = sel.SampleRate
	}
	return audio.NewEngine(cfg.Audio, buf)
}

func openSinks(cfg *config.Config, sampleRate float64) (transport.Sink, error) {
	var unicast []netip.Addr
	for _, t := range cfg.Transport.Targets {
		a, err := netip.ParseAddr(t)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", t, err)
		}
		unicast = append(unicast, a)
	}

	sender, err := udp.NewBroadcastSender(cfg.Transport.UDPPort, unicast...)
	if err != nil {
		return nil, err
	}
	sinks := transport.Multi{sender}

	if addr := cfg.Transport.WebSocketAddress; addr != "" {
		ws, err := transport.NewWebSocketSink(addr)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, ws)
	}

	if applog.Enabled(applog.LevelDebug) {
		// About one frame per second.
		sinks = append(sinks, transport.NewLoggingSink(int(sampleRate/analysis.HopSize)))
	}
	return sinks, nil
}

// liveInput runs the PortAudio engine.
type liveInput struct {
	engine *audio.Engine
	rec    config.RecordingConfig
}

func (l *liveInput) SampleRate() float64 { return l.engine.SampleRate() }

func (l *liveInput) Run(ctx context.Context) error {
	if err := l.engine.Start(); err != nil {
		return err
	}
	if l.rec.Enabled {
		rec, err := l.engine.StartRecording(l.rec.OutputFile, l.rec.BitDepth)
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		applog.WithField("file", rec.Path()).Info("Recording input")
		defer func() {
			if err := l.engine.StopRecording(); err != nil {
				applog.WithError(err).Error("Finishing recording")
				return
			}
			applog.WithFields(applog.Fields{
				"file":    rec.Path(),
				"frames":  rec.Frames(),
				"dropped": rec.Dropped(),
			}).Info("Recording saved")
		}()
	}
	<-ctx.Done()
	return nil
}

func (l *liveInput) Close() error {
	return errors.Join(l.engine.Close(), audio.Terminate())
}

// fileInput replays a file into the buffer and closes the buffer at the end
// so the processing loop drains and returns.
type fileInput struct {
	src *audio.FileSource
	buf *buffer.SampleBuffer
}

func (f *fileInput) SampleRate() float64 { return f.src.SampleRate() }

func (f *fileInput) Run(ctx context.Context) error {
	defer f.buf.Close()
	return f.src.Run(ctx, f.buf)
}

func (f *fileInput) Close() error { return f.src.Close() }

func shutdownMetrics(shutdown func(context.Context) error) {
	if err := shutdown(context.Background()); err != nil {
		applog.WithError(err).Warn("Shutting down metrics provider")
	}
}
