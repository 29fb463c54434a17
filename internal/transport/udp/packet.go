// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"math"

	"audiosync/internal/analysis"
)

/*
Audio sync v2 packet (little endian, 44 bytes)

+--------+------+---------+-------------------+------------------------------+
| Offset | Size | Type    | Field             | Notes                        |
|--------|------|---------|-------------------|------------------------------|
| 0      | 6    | bytes   | header            | "00002\0"                    |
| 6      | 2    | bytes   | reserved          | zero                         |
| 8      | 4    | float32 | sampleRaw         | 0..255                       |
| 12     | 4    | float32 | sampleSmth        | 0..255                       |
| 16     | 1    | uint8   | samplePeak        | 1 on beat                    |
| 17     | 1    | uint8   | frameCounter      | rolling                      |
| 18     | 16   | bytes   | fftResult         | 16 bins, 0..255              |
| 34     | 2    | uint16  | zeroCrossingCount |                              |
| 36     | 4    | float32 | FFT_Magnitude     | unscaled                     |
| 40     | 4    | float32 | FFT_MajorPeak     | Hz                           |
+--------+------+---------+-------------------+------------------------------+
*/

// PacketSize is the fixed wire size of an audio sync packet.
const PacketSize = 44

// Header is the protocol version tag at the start of every packet.
var Header = [6]byte{'0', '0', '0', '0', '2', 0}

var (
	// ErrPacketSize is returned when a datagram is not exactly PacketSize bytes.
	ErrPacketSize = errors.New("audio sync packet must be 44 bytes")
	// ErrBadHeader is returned when the version tag does not match Header.
	ErrBadHeader = errors.New("audio sync packet has an unknown header")
)

// AppendPacket encodes frame and appends the 44 bytes to dst. Out-of-range
// values are clamped per field, so encoding never fails.
func AppendPacket(dst []byte, frame *analysis.SpectralFrame) []byte {
	dst = append(dst, Header[:]...)
	dst = append(dst, 0, 0)
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(clampFloat(frame.SampleRaw, 255)))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(clampFloat(frame.SampleSmooth, 255)))
	var peak byte
	if frame.Beat {
		peak = 1
	}
	dst = append(dst, peak, frame.Counter)
	dst = append(dst, frame.Bins[:]...)
	dst = binary.LittleEndian.AppendUint16(dst, frame.ZeroCrossings)
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(clampFloat(frame.Magnitude, math.MaxFloat32)))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(clampFloat(frame.MajorPeak, math.MaxFloat32)))
	return dst
}

// Encode returns the packet for frame.
func Encode(frame *analysis.SpectralFrame) [PacketSize]byte {
	var out [PacketSize]byte
	AppendPacket(out[:0], frame)
	return out
}

// Decode parses a packet produced by Encode.
func Decode(b []byte) (analysis.SpectralFrame, error) {
	var f analysis.SpectralFrame
	if len(b) != PacketSize {
		return f, ErrPacketSize
	}
	if [6]byte(b[:6]) != Header {
		return f, ErrBadHeader
	}

	f.SampleRaw = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:])))
	f.SampleSmooth = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[12:])))
	f.Beat = b[16] != 0
	f.Counter = b[17]
	copy(f.Bins[:], b[18:34])
	f.ZeroCrossings = binary.LittleEndian.Uint16(b[34:])
	f.Magnitude = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[36:])))
	f.MajorPeak = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[40:])))
	return f, nil
}

// clampFloat maps v into [0, hi] as a float32; NaN becomes 0.
func clampFloat(v, hi float64) float32 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= hi:
		return float32(hi)
	default:
		return float32(v)
	}
}
