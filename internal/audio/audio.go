// Package audio decodes uploaded or recorded clips into mono float32
// samples and resamples them to the rate the models expect.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrUnsupportedFormat is returned when the clip is neither WAV nor MP3.
	ErrUnsupportedFormat = errors.New("audio: unsupported format (expected WAV or MP3)")
	// ErrEmptyAudio is returned when the clip decodes to zero samples.
	ErrEmptyAudio = errors.New("audio: clip contains no samples")
	// ErrInvalidAudio is returned when a WAV or MP3 container is corrupt.
	ErrInvalidAudio = errors.New("audio: invalid or corrupt audio")
)

// Decode rejects clips whose header declares a rate outside this range.
const (
	MinSampleRate = 1000
	MaxSampleRate = 384000
)

// Clip is a decoded mono clip.
type Clip struct {
	Samples    []float32 // mono, normalized to [-1.0, 1.0]
	SampleRate int
	Channels   int    // channel count of the source before downmix
	Format     string // "wav", "mp3" or "pcm"
}

// NewClip wraps already-decoded mono samples.
func NewClip(samples []float32, sampleRate int) *Clip {
	return &Clip{Samples: samples, SampleRate: sampleRate, Channels: 1, Format: "pcm"}
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// To returns a copy of the clip resampled to rate. The receiver is returned
// unchanged when it is already at that rate.
func (c *Clip) To(rate int) *Clip {
	if c.SampleRate == rate || c.SampleRate <= 0 || rate <= 0 {
		return c
	}
	return &Clip{
		Samples:    Resample(c.Samples, c.SampleRate, rate),
		SampleRate: rate,
		Channels:   c.Channels,
		Format:     c.Format,
	}
}

// Decode reads a whole clip from r. The container is detected from the
// content; name is only used as a hint for MP3 files without an ID3 tag.
func Decode(r io.Reader, name string) (*Clip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read clip: %w", err)
	}

	var clip *Clip
	switch {
	case isWAV(data):
		clip, err = decodeWAV(data)
	case isMP3(data, name):
		clip, err = decodeMP3(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	if clip.SampleRate < MinSampleRate || clip.SampleRate > MaxSampleRate {
		return nil, fmt.Errorf("%w: sample rate %d Hz outside %d-%d Hz",
			ErrUnsupportedFormat, clip.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if len(clip.Samples) == 0 {
		return nil, ErrEmptyAudio
	}
	return clip, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte, name string) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// MPEG audio frame sync: 11 set bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".mp3")
}

func decodeWAV(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: WAV header", ErrInvalidAudio)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decode WAV: %v", ErrInvalidAudio, err)
	}

	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: WAV declares %d channels", ErrInvalidAudio, channels)
	}

	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}

	interleaved := pcmToFloat32(buf.Data, bitDepth)

	return &Clip{
		Samples:    Downmix(interleaved, channels),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		Format:     "wav",
	}, nil
}

// pcmToFloat32 converts integer PCM to float32 in [-1.0, 1.0].
// 8-bit WAV samples are unsigned.
func pcmToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth == 8 {
		for i, s := range data {
			out[i] = float32(s-128) / 128.0
		}
		return out
	}

	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, s := range data {
		out[i] = float32(s) / scale
	}
	return out
}

func decodeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode MP3: %v", ErrInvalidAudio, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: read MP3 PCM: %v", ErrInvalidAudio, err)
	}

	// go-mp3 always decodes to signed 16-bit little-endian stereo.
	frames := len(pcm) / 4
	interleaved := make([]int, frames*2)
	for i := range interleaved {
		interleaved[i] = int(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}

	return &Clip{
		Samples:    Downmix(pcmToFloat32(interleaved, 16), 2),
		SampleRate: dec.SampleRate(),
		Channels:   2,
		Format:     "mp3",
	}, nil
}

// Downmix averages interleaved channels into a mono signal.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
