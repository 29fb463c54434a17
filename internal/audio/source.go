// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	applog "audiosync/internal/log"
	"audiosync/pkg/bitint"
)

// ErrUnsupportedFormat is returned for files that are not wav, mp3 or ogg.
var ErrUnsupportedFormat = errors.New("unsupported audio file format")

// sampleReader yields interleaved float32 samples in [-1, 1]. Read returns
// io.EOF once the stream is exhausted.
type sampleReader interface {
	Read(dst []float32) (int, error)
}

// decoded is an opened file ready to be read.
type decoded struct {
	reader     sampleReader
	closer     io.Closer
	sampleRate int
	channels   int
}

// FileSource replays an audio file into the sample buffer in blocks the size
// a capture callback would deliver, so the processing side cannot tell it
// apart from live input.
type FileSource struct {
	path string
	cur  decoded

	// Paced sleeps for each block's duration so the file plays in real
	// time. Unpaced replay pushes as fast as the Pusher accepts.
	Paced bool
	// Loop restarts the file at EOF instead of returning.
	Loop bool

	frames int // frames per block
	block  []float32
}

// OpenFile opens path and picks a decoder by extension.
func OpenFile(path string) (*FileSource, error) {
	d, err := openDecoded(path)
	if err != nil {
		return nil, err
	}
	frames := bitint.NextPowerOfTwo(d.sampleRate / 100)
	return &FileSource{
		path:   path,
		cur:    d,
		Paced:  true,
		frames: frames,
		block:  make([]float32, frames*d.channels),
	}, nil
}

func openDecoded(path string) (decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return decoded{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var d decoded
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		d, err = openWAV(f)
	case ".mp3":
		d, err = openMP3(f)
	case ".ogg", ".oga":
		d, err = openOgg(f)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		f.Close()
		return decoded{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	d.closer = f
	return d, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *FileSource) SampleRate() float64 { return float64(s.cur.sampleRate) }

// Channels returns the file's channel count.
func (s *FileSource) Channels() int { return s.cur.channels }

// BlockFrames returns the number of frames pushed per block.
func (s *FileSource) BlockFrames() int { return s.frames }

// Run pushes the file into out until EOF (or forever with Loop) or until ctx
// is done. A trailing partial block is pushed as is.
func (s *FileSource) Run(ctx context.Context, out Pusher) error {
	blockDur := time.Duration(float64(s.frames) / float64(s.cur.sampleRate) * float64(time.Second))
	var ticker *time.Ticker
	if s.Paced {
		ticker = time.NewTicker(blockDur)
		defer ticker.Stop()
	}

	applog.WithFields(applog.Fields{
		"file":        s.path,
		"sample_rate": s.cur.sampleRate,
		"channels":    s.cur.channels,
		"paced":       s.Paced,
	}).Info("Replay started")

	for {
		n, err := readFull(s.cur.reader, s.block)
		// Keep whole frames only.
		n -= n % s.cur.channels
		if n > 0 {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return nil
			}
			out.Push(s.block[:n], s.cur.channels, float64(s.cur.sampleRate))
		}

		switch {
		case err == nil:
			continue
		case !errors.Is(err, io.EOF):
			return fmt.Errorf("replay %s: %w", s.path, err)
		case !s.Loop:
			applog.WithField("file", s.path).Info("Replay finished")
			return nil
		}

		if err := s.rewind(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *FileSource) rewind() error {
	d, err := openDecoded(s.path)
	if err != nil {
		return err
	}
	if d.sampleRate != s.cur.sampleRate || d.channels != s.cur.channels {
		d.closer.Close()
		return fmt.Errorf("replay %s: format changed on reopen", s.path)
	}
	s.cur.closer.Close()
	s.cur = d
	applog.WithField("file", s.path).Debug("Replay looped")
	return nil
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.cur.closer == nil {
		return nil
	}
	err := s.cur.closer.Close()
	s.cur.closer = nil
	return err
}

// readFull fills dst unless the stream ends, returning io.EOF with the
// samples read so far.
func readFull(r sampleReader, dst []float32) (int, error) {
	var total int
	for total < len(dst) {
		n, err := r.Read(dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

// wavReader converts PCM integer frames to float32.
type wavReader struct {
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	scale float32
}

func openWAV(f *os.File) (decoded, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return decoded{}, errors.New("invalid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return decoded{}, fmt.Errorf("WAV format %d is not integer PCM", dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return decoded{}, err
	}
	channels := int(dec.NumChans)
	return decoded{
		reader: &wavReader{
			dec:   dec,
			buf:   &audio.IntBuffer{Data: make([]int, 0)},
			scale: float32(1 / math.Exp2(float64(dec.BitDepth-1))),
		},
		sampleRate: int(dec.SampleRate),
		channels:   channels,
	}, nil
}

func (w *wavReader) Read(dst []float32) (int, error) {
	if cap(w.buf.Data) < len(dst) {
		w.buf.Data = make([]int, len(dst))
	}
	w.buf.Data = w.buf.Data[:len(dst)]
	n, err := w.dec.PCMBuffer(w.buf)
	for i, v := range w.buf.Data[:n] {
		dst[i] = float32(v) * w.scale
	}
	if err == nil && n == 0 {
		err = io.EOF
	}
	return n, err
}

// mp3Reader converts the decoder's 16-bit little-endian stereo stream.
type mp3Reader struct {
	dec *mp3.Decoder
	raw []byte
}

func openMP3(f *os.File) (decoded, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return decoded{}, err
	}
	return decoded{
		reader:     &mp3Reader{dec: dec},
		sampleRate: dec.SampleRate(),
		channels:   2,
	}, nil
}

func (m *mp3Reader) Read(dst []float32) (int, error) {
	want := len(dst) * 2
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}
	raw := m.raw[:want]
	n, err := io.ReadFull(m.dec, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return pcm16ToFloat(dst, raw[:n-n%2]), err
}

// pcm16ToFloat converts little-endian signed 16-bit samples.
func pcm16ToFloat(dst []float32, raw []byte) int {
	n := min(len(dst), len(raw)/2)
	for i := range n {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	return n
}

func openOgg(f *os.File) (decoded, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return decoded{}, err
	}
	return decoded{
		reader:     r,
		sampleRate: r.SampleRate(),
		channels:   r.Channels(),
	}, nil
}
