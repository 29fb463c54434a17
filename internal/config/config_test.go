// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Transport.UDPPort != DefaultUDPPort {
		t.Errorf("UDPPort = %d, want %d", cfg.Transport.UDPPort, DefaultUDPPort)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %.0f, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.yaml", ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.yaml", `
log_level: debug
audio:
  sample_rate: 44100
  input_channels: 1
transport:
  udp_port: 21324
analysis:
  beat_refractory: 12
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.InputChannels != 1 {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if cfg.Transport.UDPPort != 21324 {
		t.Errorf("UDPPort = %d, want 21324", cfg.Transport.UDPPort)
	}
	if cfg.Analysis.BeatRefractory != 12 {
		t.Errorf("BeatRefractory = %d, want 12", cfg.Analysis.BeatRefractory)
	}
	// Untouched fields keep their defaults.
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("FramesPerBuffer = %d, want default", cfg.Audio.FramesPerBuffer)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "config.toml", `
log_level = "warn"

[audio]
device_name = "monitor"

[metrics]
listen_address = ":9090"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Audio.DeviceName != "monitor" {
		t.Errorf("DeviceName = %q, want monitor", cfg.Audio.DeviceName)
	}
	if cfg.Metrics.ListenAddress != ":9090" {
		t.Errorf("ListenAddress = %q, want :9090", cfg.Metrics.ListenAddress)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_UDP_PORT", "4048")
	t.Setenv("ENV_DEVICE", "loopback")
	t.Setenv("ENV_DEBUG", "true")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Transport.UDPPort != 4048 {
		t.Errorf("UDPPort = %d, want 4048", cfg.Transport.UDPPort)
	}
	if cfg.Audio.DeviceName != "loopback" {
		t.Errorf("DeviceName = %q, want loopback", cfg.Audio.DeviceName)
	}
	if !cfg.Debug {
		t.Error("Debug should be overridden to true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"too many channels", func(c *Config) { c.Audio.InputChannels = 6 }, "audio.input_channels"},
		{"zero channels", func(c *Config) { c.Audio.InputChannels = 0 }, "audio.input_channels"},
		{"huge buffer", func(c *Config) { c.Audio.FramesPerBuffer = 1 << 20 }, "audio.frames_per_buffer"},
		{"bad port", func(c *Config) { c.Transport.UDPPort = 70000 }, "transport.udp_port"},
		{"bad target", func(c *Config) { c.Transport.Targets = []string{"10.0.0.7", "fe80::1"} }, "transport.targets"},
		{"bad websocket", func(c *Config) { c.Transport.WebSocketAddress = "nope" }, "transport.websocket_address"},
		{"bad device", func(c *Config) { c.Audio.InputDevice = -5 }, "audio.input_device"},
		{"bad release", func(c *Config) { c.Analysis.LevelReleaseRate = 1.5 }, "analysis.level_release_rate"},
		{"bad bit depth", func(c *Config) {
			c.Recording.Enabled = true
			c.Recording.BitDepth = 8
		}, "recording.bit_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
