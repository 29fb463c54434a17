// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiosync/internal/config"
)

func parse(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cfg, err := ParseArgs(args)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg
}

func TestParseArgsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := parse(t)

	assert.Equal(t, CommandRun, cfg.Command)
	assert.Equal(t, config.DefaultDeviceID, cfg.Audio.InputDevice)
	assert.Equal(t, float64(config.DefaultSampleRate), cfg.Audio.SampleRate)
	assert.Equal(t, config.DefaultUDPPort, cfg.Transport.UDPPort)
	assert.False(t, cfg.Recording.Enabled)
	assert.Empty(t, cfg.Recording.OutputFile)
}

func TestParseArgsFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := parse(t,
		"-d", "3", "-c", "1", "-s", "44100", "-b", "1024", "-l",
		"-p", "21324", "-t", "192.168.1.40", "--target", "192.168.1.41",
		"--websocket", ":8080", "--metrics", "127.0.0.1:9090",
		"-i", "song.mp3", "--loop", "-v",
	)

	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.Equal(t, 1, cfg.Audio.InputChannels)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, 1024, cfg.Audio.FramesPerBuffer)
	assert.True(t, cfg.Audio.LowLatency)
	assert.Equal(t, 21324, cfg.Transport.UDPPort)
	assert.Equal(t, []string{"192.168.1.40", "192.168.1.41"}, cfg.Transport.Targets)
	assert.Equal(t, ":8080", cfg.Transport.WebSocketAddress)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.ListenAddress)
	assert.Equal(t, "song.mp3", cfg.Source.InputFile)
	assert.True(t, cfg.Source.Loop)
	assert.True(t, cfg.Debug)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "audiosync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  sample_rate: 44100
  frames_per_buffer: 256
transport:
  udp_port: 4048
`), 0644))

	cfg := parse(t, "--config", path, "--port", "5000")

	assert.Equal(t, 5000, cfg.Transport.UDPPort, "flag wins over file")
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate, "file wins over default")
	assert.Equal(t, 256, cfg.Audio.FramesPerBuffer)
}

func TestRecordGeneratesOutputName(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := parse(t, "-r")
	assert.True(t, cfg.Recording.Enabled)
	assert.True(t, strings.HasPrefix(cfg.Recording.OutputFile, "recording-"))
	assert.True(t, strings.HasSuffix(cfg.Recording.OutputFile, ".wav"))

	cfg = parse(t, "-r", "-o", "show.wav")
	assert.Equal(t, "show.wav", cfg.Recording.OutputFile)
}

func TestSubcommands(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, CommandList, parse(t, "list").Command)

	sel := parse(t, "select")
	assert.Equal(t, CommandSelect, sel.Command)
	assert.Equal(t, config.SelectDeviceID, sel.Audio.InputDevice)

	recv := parse(t, "receive", "-n", "5", "-p", "21324")
	assert.Equal(t, CommandReceive, recv.Command)
	assert.Equal(t, 5, recv.Receive.Count)
	assert.Equal(t, 21324, recv.Transport.UDPPort)
}

func TestParseArgsErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"unknown command", []string{"dance"}},
		{"invalid port", []string{"-p", "70000"}},
		{"invalid channels", []string{"-c", "6"}},
		{"invalid target", []string{"-t", "not-an-ip"}},
		{"negative count", []string{"receive", "-n", "-1"}},
		{"missing config", []string{"--config", "nope.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestHelpReturnsNilConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := ParseArgs([]string{"--help"})
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}
