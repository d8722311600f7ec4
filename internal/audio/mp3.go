package audio

import (
	"fmt"
	"io"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
)

// shine encodes Layer III granules of 1152 samples per channel.
const mp3FrameSamples = 1152

// EncodeMP3 writes mono float32 samples as an MP3 stream. The tail is
// zero-padded to a whole frame.
func EncodeMP3(w io.Writer, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return ErrEmptyAudio
	}

	pcm := make([]int16, len(samples), len(samples)+mp3FrameSamples)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		pcm[i] = int16(s * 32767)
	}
	for len(pcm)%mp3FrameSamples != 0 {
		pcm = append(pcm, 0)
	}

	cw := &countingWriter{w: w}
	enc := shine.NewEncoder(sampleRate, 1)
	enc.Write(cw, pcm)
	if cw.err != nil {
		return fmt.Errorf("audio: encode MP3: %w", cw.err)
	}
	return nil
}

// countingWriter remembers the first write error; the encoder does not
// surface it.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
