// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"audiosync/internal/config"
)

func testDevices() []Device {
	return []Device{
		{ID: 0, Name: "HDA Intel PCH: ALC295 Analog", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 48000, IsDefaultInput: true},
		{ID: 1, Name: "HDMI 0", MaxOutputChannels: 8, DefaultSampleRate: 48000},
		{ID: 2, Name: "Monitor of Built-in Audio", MaxInputChannels: 2, DefaultSampleRate: 48000},
		{ID: 3, Name: "USB Loopback", MaxInputChannels: 1, DefaultSampleRate: 44100},
	}
}

func TestSelectInput(t *testing.T) {
	devices := testDevices()
	tests := []struct {
		name    string
		devices []Device
		id      int
		match   string
		wantID  int
		wantErr string
	}{
		{"by index", devices, 3, "", 3, ""},
		{"index out of range", devices, 9, "", 0, "invalid device ID"},
		{"output-only index", devices, 1, "", 0, "does not support input"},
		{"below default", devices, -5, "", 0, "invalid device ID"},
		{"by name", devices, config.DefaultDeviceID, "loopback", 3, ""},
		{"name case-insensitive", devices, config.DefaultDeviceID, "ALC295", 0, ""},
		{"name ignores outputs", devices, config.DefaultDeviceID, "hdmi", 0, "no input device matching"},
		{"monitor preferred", devices, config.DefaultDeviceID, "", 2, ""},
		{"default without monitor", []Device{devices[0], devices[1], devices[3]}, config.DefaultDeviceID, "", 0, ""},
		{"no default", []Device{devices[1], devices[3]}, config.DefaultDeviceID, "", 0, "no default input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectInput(tt.devices, tt.id, tt.match)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("SelectInput() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectInput() unexpected error: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("SelectInput() = device %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestDeviceKind(t *testing.T) {
	tests := map[string]Device{
		"Input/Output": {MaxInputChannels: 1, MaxOutputChannels: 1},
		"Input":        {MaxInputChannels: 2},
		"Output":       {MaxOutputChannels: 2},
		"None":         {},
	}
	for want, d := range tests {
		if got := d.Kind(); got != want {
			t.Errorf("Kind() = %q, want %q", got, want)
		}
	}
}

func TestWriteDevices(t *testing.T) {
	devices := testDevices()
	devices[0].LowInputLatency = 5 * time.Millisecond

	var out bytes.Buffer
	if err := WriteDevices(&out, devices); err != nil {
		t.Fatalf("WriteDevices: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"[0] HDA Intel PCH: ALC295 Analog (Input/Output) [default input]",
		"[1] HDMI 0 (Output)",
		"[2] Monitor of Built-in Audio (Input)",
		"Default sample rate: 44100 Hz",
		"Low=5.00ms",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
