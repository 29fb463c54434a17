// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Core configuration constants that define the boundaries and defaults
// for the audio feature streamer.
const (
	// Default values for the audio configuration
	DefaultChannels        = 2           // Stereo capture, downmixed to mono
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 512         // Capture callback size in frames
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 48000       // Native rate of most loopback devices
	DefaultUDPPort         = 11988       // Audio sync receivers listen here
	DefaultRecordFormat    = "wav"       // Recording container
	DefaultBitDepth        = 16          // Recording bit depth
	DefaultLogLevel        = "info"      // Quiet operation
	DefaultVerbosity       = false

	// Device selection sentinels
	MinDeviceID    = -1 // -1 represents the system default (or a "monitor" device if present)
	SelectDeviceID = -2 // -2 opens the interactive chooser

	// Hardware and processing limits
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 2      // Mono or stereo capture
)

// Config represents the main application configuration, loaded from YAML or
// TOML and then overridden by environment variables and command line flags.
type Config struct {
	Debug     bool            `yaml:"debug" toml:"debug"`             // Enable debug logging.
	LogLevel  string          `yaml:"log_level" toml:"log_level"`     // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty" toml:"-"`     // One-off command (set by the CLI only).
	Audio     AudioConfig     `yaml:"audio" toml:"audio"`             // Capture settings.
	Transport TransportConfig `yaml:"transport" toml:"transport"`     // Output sinks.
	Recording RecordingConfig `yaml:"recording" toml:"recording"`     // Optional WAV tap.
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`         // Prometheus endpoint.
	Receive   ReceiveConfig   `yaml:"receive,omitempty" toml:"-"`     // Receive command options (CLI only).
	Analysis  AnalysisConfig  `yaml:"analysis" toml:"analysis"`       // Tunables for the feature extractors.
	Source    SourceConfig    `yaml:"source,omitempty" toml:"source"` // File replay instead of live capture.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device" toml:"input_device"`           // PortAudio device index (-1 default, -2 chooser).
	DeviceName      string  `yaml:"device_name" toml:"device_name"`             // Case-insensitive substring match; wins over InputDevice.
	SampleRate      float64 `yaml:"sample_rate" toml:"sample_rate"`             // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer" toml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency" toml:"low_latency"`             // Request low latency from the device.
	InputChannels   int     `yaml:"input_channels" toml:"input_channels"`       // 1 for mono, 2 for stereo.
}

// AnalysisConfig exposes the empirically tuned constants of the analysis
// stage. Zero values fall back to the package defaults.
type AnalysisConfig struct {
	BinCeiling       float64 `yaml:"bin_ceiling" toml:"bin_ceiling"`             // Summed magnitude mapped to 255.
	BeatSensitivity  float64 `yaml:"beat_sensitivity" toml:"beat_sensitivity"`   // k in mean + k*stddev.
	BeatRefractory   int     `yaml:"beat_refractory" toml:"beat_refractory"`     // Minimum hops between beats.
	LevelFloor       float64 `yaml:"level_floor" toml:"level_floor"`             // Lowest AGC ceiling (linear RMS).
	LevelReleaseRate float64 `yaml:"level_release_rate" toml:"level_release_rate"` // Per-hop ceiling decay factor.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	UDPPort          int      `yaml:"udp_port" toml:"udp_port"`                   // Destination port for broadcast packets.
	Targets          []string `yaml:"targets" toml:"targets"`                     // Extra unicast IPv4 receivers.
	WebSocketAddress string   `yaml:"websocket_address" toml:"websocket_address"` // Optional frame mirror listen address.
}

// RecordingConfig holds settings for the WAV recording tap.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`         // Record captured input.
	OutputFile string `yaml:"output_file" toml:"output_file"` // Output path, generated when empty.
	Format     string `yaml:"format" toml:"format"`           // Only "wav".
	BitDepth   int    `yaml:"bit_depth" toml:"bit_depth"`     // 16 or 24.
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address" toml:"listen_address"` // Empty disables /metrics.
}

// SourceConfig selects a file replay source instead of live capture.
type SourceConfig struct {
	InputFile string `yaml:"input_file" toml:"input_file"` // wav, mp3 or ogg.
	Loop      bool   `yaml:"loop" toml:"loop"`             // Restart at end of file.
}

// ReceiveConfig holds the options of the receive command.
type ReceiveConfig struct {
	Count int `yaml:"count"` // Packets to decode before exiting, 0 for unlimited.
}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		Debug:    DefaultVerbosity,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
		},
		Transport: TransportConfig{
			UDPPort: DefaultUDPPort,
		},
		Recording: RecordingConfig{
			Format:   DefaultRecordFormat,
			BitDepth: DefaultBitDepth,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f out of range [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		errs = append(errs, fmt.Errorf("audio.input_channels %d out of range [1, %d]",
			c.Audio.InputChannels, MaxChannels))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d out of range [1, %d]",
			c.Audio.FramesPerBuffer, MaxBufferFrames))
	}
	if c.Audio.InputDevice < SelectDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice))
	}
	if c.Transport.UDPPort <= 0 || c.Transport.UDPPort > 65535 {
		errs = append(errs, fmt.Errorf("transport.udp_port %d out of range", c.Transport.UDPPort))
	}
	for _, t := range c.Transport.Targets {
		if a, err := netip.ParseAddr(t); err != nil || !a.Unmap().Is4() {
			errs = append(errs, fmt.Errorf("transport.targets %q is not an IPv4 address", t))
		}
	}
	if addr := c.Transport.WebSocketAddress; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("transport.websocket_address %q: %w", addr, err))
		}
	}
	if addr := c.Metrics.ListenAddress; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen_address %q: %w", addr, err))
		}
	}
	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, DefaultRecordFormat) {
			errs = append(errs, fmt.Errorf("recording.format %q is not supported", c.Recording.Format))
		}
		if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
			errs = append(errs, fmt.Errorf("recording.bit_depth %d must be 16 or 24", c.Recording.BitDepth))
		}
	}
	if c.Analysis.BeatSensitivity < 0 {
		errs = append(errs, errors.New("analysis.beat_sensitivity must not be negative"))
	}
	if c.Analysis.BeatRefractory < 0 {
		errs = append(errs, errors.New("analysis.beat_refractory must not be negative"))
	}
	if c.Receive.Count < 0 {
		errs = append(errs, errors.New("receive.count must not be negative"))
	}
	if r := c.Analysis.LevelReleaseRate; r < 0 || r >= 1 {
		errs = append(errs, fmt.Errorf("analysis.level_release_rate %.4f must be in [0, 1)", r))
	}

	return errors.Join(errs...)
}
