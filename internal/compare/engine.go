// Package compare runs one audio clip through several speech-to-text models
// and collects their transcripts side by side.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/config"
	"github.com/chaz8081/gostt-compare/internal/transcribe"
)

var (
	// ErrNoAudio is returned when a request carries no audio. Its text is
	// shown to the user as-is.
	ErrNoAudio = errors.New("No audio file submitted! Please upload or record an audio file before submitting your request.") //nolint:staticcheck // user-facing message
	// ErrUnknownModel is returned for a model id that is not configured.
	ErrUnknownModel = errors.New("compare: unknown model")
	// ErrModelUnavailable is returned for a configured model that failed to load.
	ErrModelUnavailable = errors.New("compare: model unavailable")
)

// ModelInfo describes one configured model.
type ModelInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Backend   string `json:"backend"`
	Language  string `json:"language"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of running one model on one clip.
type Result struct {
	JobID        string                `json:"job_id"`
	ModelID      string                `json:"model"`
	Label        string                `json:"label"`
	Text         string                `json:"text"`
	Elapsed      time.Duration         `json:"-"`
	ElapsedMS    int64                 `json:"elapsed_ms"`
	AudioSeconds float64               `json:"audio_seconds"`
	RTF          float64               `json:"rtf"` // processing time / audio time
	WER          *transcribe.ErrorRate `json:"wer,omitempty"`
	CER          *transcribe.ErrorRate `json:"cer,omitempty"`
	Err          error                 `json:"-"`
	Error        string                `json:"error,omitempty"`
}

type model struct {
	cfg     config.ModelConfig
	tr      transcribe.Transcriber
	loadErr error
}

func (m *model) info() ModelInfo {
	info := ModelInfo{
		ID:        m.cfg.ID,
		Label:     m.cfg.Label,
		Backend:   m.cfg.Backend,
		Language:  m.cfg.Language,
		Available: m.tr != nil,
	}
	if m.loadErr != nil {
		info.Error = m.loadErr.Error()
	}
	return info
}

// Engine holds the loaded models in configuration order.
type Engine struct {
	sampleRate int
	metrics    *Metrics

	mu     sync.RWMutex
	models []*model
	byID   map[string]*model

	obsMu     sync.RWMutex
	observers []func(Event)
}

// NewEngine returns an empty engine that feeds models audio at sampleRate.
// metrics may be nil.
func NewEngine(sampleRate int, metrics *Metrics) *Engine {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		sampleRate: sampleRate,
		metrics:    metrics,
		byID:       make(map[string]*model),
	}
}

// SampleRate returns the rate clips are resampled to before inference.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Load builds a transcriber for every cfg using factory. A model that fails
// to load stays listed as unavailable; only a cancelled ctx fails Load.
func (e *Engine) Load(ctx context.Context, cfgs []config.ModelConfig, factory transcribe.Factory) error {
	loaded := make([]*model, 0, len(cfgs))
	for _, cfg := range cfgs {
		if err := ctx.Err(); err != nil {
			for _, m := range loaded {
				if m.tr != nil {
					_ = m.tr.Close()
				}
			}
			return err
		}

		start := time.Now()
		tr, err := factory(cfg, e.sampleRate)
		m := &model{cfg: cfg, tr: tr, loadErr: err}
		if err != nil {
			m.tr = nil
			slog.Warn("model unavailable", "model", cfg.ID, "backend", cfg.Backend, "error", err)
			e.metrics.setAvailable(cfg.ID, false)
		} else {
			slog.Info("model loaded", "model", cfg.ID, "label", cfg.Label,
				"backend", cfg.Backend, "took", time.Since(start).Round(time.Millisecond))
			e.metrics.setAvailable(cfg.ID, true)
		}
		loaded = append(loaded, m)
	}

	e.mu.Lock()
	old := e.models
	e.models = loaded
	e.byID = make(map[string]*model, len(loaded))
	for _, m := range loaded {
		e.byID[m.cfg.ID] = m
	}
	e.mu.Unlock()

	for _, m := range old {
		if m.tr != nil {
			_ = m.tr.Close()
		}
	}
	return nil
}

// Models lists every configured model in order.
func (e *Engine) Models() []ModelInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ModelInfo, 0, len(e.models))
	for _, m := range e.models {
		out = append(out, m.info())
	}
	return out
}

// Available reports how many models loaded successfully.
func (e *Engine) Available() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, m := range e.models {
		if m.tr != nil {
			n++
		}
	}
	return n
}

// Transcribe runs a single model on clip.
func (e *Engine) Transcribe(ctx context.Context, id string, clip *audio.Clip) (Result, error) {
	if isEmpty(clip) {
		return Result{}, ErrNoAudio
	}

	e.mu.RLock()
	m, ok := e.byID[id]
	e.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	if m.tr == nil {
		return Result{ModelID: id, Label: m.cfg.Label}, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, id, m.loadErr)
	}

	res := e.run(ctx, uuid.NewString(), m, clip.To(e.sampleRate))
	return res, res.Err
}

// TranscribeAll runs every model on clip concurrently. A failing model is
// reported in its Result and does not stop the others. When reference is
// non-empty each successful result is scored against it. Results keep
// configuration order.
func (e *Engine) TranscribeAll(ctx context.Context, clip *audio.Clip, reference string) ([]Result, error) {
	if isEmpty(clip) {
		return nil, ErrNoAudio
	}

	e.mu.RLock()
	models := append([]*model(nil), e.models...)
	e.mu.RUnlock()

	jobID := uuid.NewString()
	resampled := clip.To(e.sampleRate)
	reference = strings.TrimSpace(reference)

	results := make([]Result, len(models))
	var g errgroup.Group
	for i, m := range models {
		g.Go(func() error {
			if m.tr == nil {
				err := fmt.Errorf("%w: %s: %v", ErrModelUnavailable, m.cfg.ID, m.loadErr)
				results[i] = Result{JobID: jobID, ModelID: m.cfg.ID, Label: m.cfg.Label, Err: err, Error: err.Error()}
				return nil
			}
			res := e.run(ctx, jobID, m, resampled)
			if res.Err == nil && reference != "" {
				wer := transcribe.ComputeWER(reference, res.Text)
				cer := transcribe.ComputeCER(reference, res.Text)
				res.WER, res.CER = &wer, &cer
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) run(ctx context.Context, jobID string, m *model, clip *audio.Clip) Result {
	res := Result{
		JobID:        jobID,
		ModelID:      m.cfg.ID,
		Label:        m.cfg.Label,
		AudioSeconds: clip.Duration().Seconds(),
	}

	e.emit(Event{Type: EventStarted, JobID: jobID, ModelID: m.cfg.ID, Label: m.cfg.Label})
	slog.Debug("transcription started", "job", jobID, "model", m.cfg.ID, "audio_s", res.AudioSeconds)

	start := time.Now()
	text, err := m.tr.Process(ctx, clip.Samples)
	res.Elapsed = time.Since(start)
	res.ElapsedMS = res.Elapsed.Milliseconds()
	if res.AudioSeconds > 0 {
		res.RTF = res.Elapsed.Seconds() / res.AudioSeconds
	}
	e.metrics.observe(m.cfg.ID, res.Elapsed, res.AudioSeconds, err)

	if err != nil {
		res.Err = fmt.Errorf("compare: %s: %w", m.cfg.ID, err)
		res.Error = res.Err.Error()
		slog.Error("transcription failed", "job", jobID, "model", m.cfg.ID, "error", err)
		e.emit(Event{Type: EventFailed, JobID: jobID, ModelID: m.cfg.ID, Label: m.cfg.Label,
			ElapsedMS: res.ElapsedMS, Error: res.Error})
		return res
	}

	res.Text = text
	slog.Info("transcription done", "job", jobID, "model", m.cfg.ID,
		"elapsed", res.Elapsed.Round(time.Millisecond), "rtf", fmt.Sprintf("%.2f", res.RTF))
	e.emit(Event{Type: EventDone, JobID: jobID, ModelID: m.cfg.ID, Label: m.cfg.Label,
		ElapsedMS: res.ElapsedMS, Text: text})
	return res
}

// Close releases every loaded model.
func (e *Engine) Close() error {
	e.mu.Lock()
	models := e.models
	e.models = nil
	e.byID = make(map[string]*model)
	e.mu.Unlock()

	var result *multierror.Error
	for _, m := range models {
		if m.tr == nil {
			continue
		}
		if err := m.tr.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("compare: close %s: %w", m.cfg.ID, err))
		}
	}
	return result.ErrorOrNil()
}

func isEmpty(clip *audio.Clip) bool {
	return clip == nil || len(clip.Samples) == 0
}
