// Package transcribe provides speech-to-text backends.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (ggml model files)
//   - remote: an OpenAI-compatible /audio/transcriptions endpoint
package transcribe

import (
	"context"
	"fmt"

	"github.com/chaz8081/gostt-compare/internal/config"
)

// Transcriber converts audio samples to text.
type Transcriber interface {
	// Process transcribes mono float32 audio samples, already at the
	// engine's target rate, to text.
	Process(ctx context.Context, samples []float32) (string, error)
	// Close releases backend resources.
	Close() error
}

// Factory builds a Transcriber for one configured model.
type Factory func(cfg config.ModelConfig, sampleRate int) (Transcriber, error)

// New creates a Transcriber based on the model's backend setting.
func New(cfg config.ModelConfig, sampleRate int) (Transcriber, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		return NewRemoteTranscriber(RemoteOptions{
			BaseURL:    cfg.Remote.BaseURL,
			Model:      cfg.Remote.Model,
			APIKey:     cfg.Remote.APIKey,
			Language:   cfg.Language,
			Timeout:    cfg.Remote.Timeout,
			SampleRate: sampleRate,
		})
	case config.BackendWhisper, "":
		return NewWhisperTranscriber(WhisperOptions{
			ModelPath: cfg.ModelPath,
			Language:  cfg.Language,
			Threads:   cfg.Threads,
		})
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper, remote)", cfg.Backend)
	}
}
