package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// EncodeWAV writes mono float32 samples as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize WAV: %w", err)
	}
	return nil
}

// WAVBytes encodes the clip as an in-memory 16-bit PCM WAV file.
func (c *Clip) WAVBytes() ([]byte, error) {
	var buf WriteSeekBuffer
	if err := EncodeWAV(&buf, c.Samples, c.SampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSeekBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks
// back to patch chunk sizes, which bytes.Buffer cannot do.
type WriteSeekBuffer struct {
	buf []byte
	pos int
}

var _ io.WriteSeeker = (*WriteSeekBuffer)(nil)

func (b *WriteSeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *WriteSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns the written content.
func (b *WriteSeekBuffer) Bytes() []byte {
	return b.buf
}

// Reader returns a reader over the written content.
func (b *WriteSeekBuffer) Reader() *bytes.Reader {
	return bytes.NewReader(b.buf)
}
