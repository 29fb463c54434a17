// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"audiosync/internal/analysis"
	applog "audiosync/internal/log"
)

type recordingSink struct {
	frames []uint8
	err    error
	closed bool
}

func (r *recordingSink) Send(_ []byte, f *analysis.SpectralFrame) error {
	r.frames = append(r.frames, f.Counter)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{err: boom}
	b := &recordingSink{}
	m := Multi{a, b}

	err := m.Send(nil, &analysis.SpectralFrame{Counter: 4})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uint8{4}, a.frames)
	assert.Equal(t, []uint8{4}, b.frames, "later sinks still receive the frame")

	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestLoggingSinkSamples(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	applog.SetLevel(applog.LevelDebug)
	defer applog.SetOutput(os.Stderr)
	defer applog.SetLevel(applog.LevelInfo)

	ls := NewLoggingSink(10)
	buf.Reset()
	for i := range 25 {
		assert.NoError(t, ls.Send(nil, &analysis.SpectralFrame{Counter: uint8(i)}))
	}
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("msg=Frame")))
	assert.Contains(t, buf.String(), "frame=20")
	assert.NoError(t, ls.Close())
}
