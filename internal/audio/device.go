// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"
	"time"

	"audiosync/internal/config"
)

// MonitorHint is the name fragment of loopback capture devices. When no
// device is configured, a device whose name contains it is preferred over the
// system default so that the streamer follows what the host is playing.
const MonitorHint = "monitor"

// Device is a host audio device as reported by PortAudio.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	IsDefaultInput    bool
}

// Kind describes the device direction.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "None"
	}
}

// IsInput reports whether the device can capture.
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// SelectInput picks the capture device from devices.
//
//   - id >= 0 selects that index, which must be an input device.
//   - Otherwise a non-empty name selects the first input device whose name
//     contains it, case-insensitively.
//   - Otherwise the first input device whose name contains MonitorHint wins,
//     then the system default input.
func SelectInput(devices []Device, id int, name string) (Device, error) {
	if id >= 0 {
		if id >= len(devices) {
			return Device{}, fmt.Errorf("invalid device ID: %d", id)
		}
		d := devices[id]
		if !d.IsInput() {
			return Device{}, fmt.Errorf("device %d (%s) does not support input", id, d.Name)
		}
		return d, nil
	}
	if id != config.DefaultDeviceID {
		return Device{}, fmt.Errorf("invalid device ID: %d", id)
	}

	if name != "" {
		if d, ok := findInput(devices, name); ok {
			return d, nil
		}
		return Device{}, fmt.Errorf("no input device matching %q", name)
	}

	if d, ok := findInput(devices, MonitorHint); ok {
		return d, nil
	}
	for _, d := range devices {
		if d.IsDefaultInput && d.IsInput() {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("no default input device")
}

func findInput(devices []Device, fragment string) (Device, bool) {
	fragment = strings.ToLower(fragment)
	for _, d := range devices {
		if d.IsInput() && strings.Contains(strings.ToLower(d.Name), fragment) {
			return d, true
		}
	}
	return Device{}, false
}

// WriteDevices prints a human readable device table.
func WriteDevices(w io.Writer, devices []Device) error {
	if _, err := fmt.Fprintf(w, "\nAvailable Audio Devices\n\n"); err != nil {
		return err
	}
	for _, d := range devices {
		marker := ""
		if d.IsDefaultInput {
			marker = " [default input]"
		}
		_, err := fmt.Fprintf(w, "[%d] %s (%s)%s\n"+
			"    Host API: %s\n"+
			"    Input channels: %d, Output channels: %d\n"+
			"    Default sample rate: %.0f Hz\n"+
			"    Latency: Low=%.2fms, High=%.2fms\n\n",
			d.ID, d.Name, d.Kind(), marker,
			d.HostAPI,
			d.MaxInputChannels, d.MaxOutputChannels,
			d.DefaultSampleRate,
			d.LowInputLatency.Seconds()*1000, d.HighInputLatency.Seconds()*1000)
		if err != nil {
			return err
		}
	}
	return nil
}
