package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperOptions configures a whisper.cpp transcriber.
type WhisperOptions struct {
	ModelPath string
	Language  string // "auto" or an ISO-639-1 code
	Threads   uint   // 0 keeps the whisper.cpp default
}

// WhisperTranscriber wraps a whisper.cpp model for speech-to-text.
// Calls to Process are serialized; the model is shared by every context.
type WhisperTranscriber struct {
	model whisper.Model
	opts  WhisperOptions
	mu    sync.Mutex
}

// NewWhisperTranscriber loads a whisper model from opts.ModelPath.
// The caller must call Close() when done.
func NewWhisperTranscriber(opts WhisperOptions) (*WhisperTranscriber, error) {
	model, err := whisper.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", opts.ModelPath, err)
	}

	lang, err := resolveLanguage(opts.Language, model.IsMultilingual(), model.Languages())
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("transcribe: %s: %w", opts.ModelPath, err)
	}
	if opts.Language != "" && lang != opts.Language {
		slog.Warn("whisper model is English-only, language hint ignored",
			"model", opts.ModelPath, "language", opts.Language)
	}
	opts.Language = lang

	return &WhisperTranscriber{model: model, opts: opts}, nil
}

// resolveLanguage picks the language a model runs with. English-only models
// always get "en"; multilingual models must know the requested code.
func resolveLanguage(lang string, multilingual bool, supported []string) (string, error) {
	if lang == "" || lang == "auto" {
		return "auto", nil
	}
	if !multilingual {
		return "en", nil
	}
	if !slices.Contains(supported, lang) {
		return "", fmt.Errorf("unsupported language %q", lang)
	}
	return lang, nil
}

// Close releases the whisper model resources.
func (t *WhisperTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		err := t.model.Close()
		t.model = nil
		return err
	}
	return nil
}

// Process transcribes mono 16kHz float32 audio samples to text. Cancelling
// ctx aborts the run before the next encoder pass.
func (t *WhisperTranscriber) Process(ctx context.Context, samples []float32) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model == nil {
		return "", errors.New("transcribe: whisper model is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: create context: %w", err)
	}
	if err := wctx.SetLanguage(t.opts.Language); err != nil {
		return "", fmt.Errorf("transcribe: set language %q: %w", t.opts.Language, err)
	}
	wctx.SetTranslate(false)
	if t.opts.Threads > 0 {
		wctx.SetThreads(t.opts.Threads)
	}

	encoderBegin := func() bool {
		return ctx.Err() == nil
	}
	if err := wctx.Process(samples, encoderBegin, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("transcribe: process: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(seg.Text))
	}

	return strings.TrimSpace(strings.Join(segments, " ")), nil
}
