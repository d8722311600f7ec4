package compare

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/config"
	"github.com/chaz8081/gostt-compare/internal/transcribe"
)

type fakeTranscriber struct {
	text     string
	err      error
	delay    time.Duration
	closeErr error

	calls   atomic.Int32
	closed  atomic.Bool
	lastLen atomic.Int64
}

func (f *fakeTranscriber) Process(ctx context.Context, samples []float32) (string, error) {
	f.calls.Add(1)
	f.lastLen.Store(int64(len(samples)))
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeTranscriber) Close() error {
	f.closed.Store(true)
	return f.closeErr
}

// fakeFactory serves transcribers by model id; ids missing from the map fail
// to load.
func fakeFactory(fakes map[string]*fakeTranscriber) transcribe.Factory {
	return func(cfg config.ModelConfig, _ int) (transcribe.Transcriber, error) {
		f, ok := fakes[cfg.ID]
		if !ok {
			return nil, errors.New("model file not found")
		}
		return f, nil
	}
}

func testConfigs() []config.ModelConfig {
	return []config.ModelConfig{
		{ID: "quantized", Label: "Quantized", Backend: config.BackendWhisper, Language: "vi"},
		{ID: "baseline", Label: "Baseline", Backend: config.BackendWhisper, Language: "auto"},
		{ID: "specialized", Label: "Specialized", Backend: config.BackendWhisper, Language: "vi"},
	}
}

func loadEngine(t *testing.T, fakes map[string]*fakeTranscriber) *Engine {
	t.Helper()
	e := NewEngine(16000, nil)
	require.NoError(t, e.Load(context.Background(), testConfigs(), fakeFactory(fakes)))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func oneSecond() *audio.Clip {
	return audio.NewClip(make([]float32, 16000), 16000)
}

func TestLoadKeepsUnavailableModels(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{
		"quantized": {text: "a"},
		"baseline":  {text: "b"},
	})

	models := e.Models()
	require.Len(t, models, 3)
	assert.Equal(t, []string{"quantized", "baseline", "specialized"},
		[]string{models[0].ID, models[1].ID, models[2].ID})
	assert.True(t, models[0].Available)
	assert.True(t, models[1].Available)
	assert.False(t, models[2].Available)
	assert.Contains(t, models[2].Error, "model file not found")
	assert.Equal(t, 2, e.Available())
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(16000, nil)
	err := e.Load(ctx, testConfigs(), fakeFactory(nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Models())
}

func TestTranscribeNoAudio(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": {text: "x"}})

	for name, clip := range map[string]*audio.Clip{
		"nil":   nil,
		"empty": audio.NewClip(nil, 16000),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Transcribe(context.Background(), "quantized", clip)
			require.ErrorIs(t, err, ErrNoAudio)
			assert.Equal(t,
				"No audio file submitted! Please upload or record an audio file before submitting your request.",
				err.Error())

			_, err = e.TranscribeAll(context.Background(), clip, "")
			assert.ErrorIs(t, err, ErrNoAudio)
		})
	}
}

func TestTranscribeUnknownAndUnavailable(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": {text: "x"}})

	_, err := e.Transcribe(context.Background(), "nope", oneSecond())
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = e.Transcribe(context.Background(), "baseline", oneSecond())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestTranscribeResamples(t *testing.T) {
	fake := &fakeTranscriber{text: "xin chào"}
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": fake})

	clip := audio.NewClip(make([]float32, 8000), 8000)
	res, err := e.Transcribe(context.Background(), "quantized", clip)
	require.NoError(t, err)

	assert.Equal(t, int64(16000), fake.lastLen.Load())
	assert.Equal(t, "xin chào", res.Text)
	assert.Equal(t, "quantized", res.ModelID)
	assert.Equal(t, "Quantized", res.Label)
	assert.NotEmpty(t, res.JobID)
	assert.InDelta(t, 1.0, res.AudioSeconds, 0.001)
}

func TestTranscribeModelError(t *testing.T) {
	boom := errors.New("inference crashed")
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": {err: boom}})

	res, err := e.Transcribe(context.Background(), "quantized", oneSecond())
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, res.Err, boom)
	assert.Contains(t, res.Error, "inference crashed")
}

func TestTranscribeAll(t *testing.T) {
	fakes := map[string]*fakeTranscriber{
		"quantized": {text: "xin chào việt nam", delay: 20 * time.Millisecond},
		"baseline":  {err: errors.New("out of memory")},
	}
	e := loadEngine(t, fakes)

	results, err := e.TranscribeAll(context.Background(), oneSecond(), "Xin chào Việt Nam")
	require.NoError(t, err)
	require.Len(t, results, 3)

	jobID := results[0].JobID
	require.NotEmpty(t, jobID)
	for _, r := range results {
		assert.Equal(t, jobID, r.JobID, "results of one run share a job id")
	}

	assert.Equal(t, "quantized", results[0].ModelID)
	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].WER)
	assert.InDelta(t, 0.0, results[0].WER.Rate, 0.0001)
	require.NotNil(t, results[0].CER)

	assert.Equal(t, "baseline", results[1].ModelID)
	assert.Contains(t, results[1].Error, "out of memory")
	assert.Nil(t, results[1].WER)

	assert.Equal(t, "specialized", results[2].ModelID)
	assert.ErrorIs(t, results[2].Err, ErrModelUnavailable)

	assert.Equal(t, int32(1), fakes["quantized"].calls.Load())
	assert.Equal(t, int32(1), fakes["baseline"].calls.Load())
}

func TestTranscribeAllNoReferenceSkipsScoring(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": {text: "hello"}})

	results, err := e.TranscribeAll(context.Background(), oneSecond(), "   ")
	require.NoError(t, err)
	assert.Nil(t, results[0].WER)
	assert.Nil(t, results[0].CER)
}

func TestTranscribeAllRunsConcurrently(t *testing.T) {
	fakes := map[string]*fakeTranscriber{
		"quantized":   {text: "a", delay: 100 * time.Millisecond},
		"baseline":    {text: "b", delay: 100 * time.Millisecond},
		"specialized": {text: "c", delay: 100 * time.Millisecond},
	}
	e := loadEngine(t, fakes)

	start := time.Now()
	_, err := e.TranscribeAll(context.Background(), oneSecond(), "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestTranscribeAllCancelled(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{"quantized": {text: "a", delay: time.Second}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results, err := e.TranscribeAll(ctx, oneSecond(), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestEvents(t *testing.T) {
	e := loadEngine(t, map[string]*fakeTranscriber{
		"quantized": {text: "ok"},
		"baseline":  {err: errors.New("bad")},
	})

	var mu sync.Mutex
	var events []Event
	e.OnEvent(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	_, err := e.TranscribeAll(context.Background(), oneSecond(), "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	counts := map[EventType]int{}
	for _, ev := range events {
		counts[ev.Type]++
		assert.NotEmpty(t, ev.JobID)
	}
	assert.Equal(t, 2, counts[EventStarted])
	assert.Equal(t, 1, counts[EventDone])
	assert.Equal(t, 1, counts[EventFailed])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	e := NewEngine(16000, m)
	require.NoError(t, e.Load(context.Background(), testConfigs(), fakeFactory(map[string]*fakeTranscriber{
		"quantized": {text: "ok"},
	})))
	defer func() { _ = e.Close() }()

	_, err := e.Transcribe(context.Background(), "quantized", oneSecond())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transcriptions.WithLabelValues("quantized", "ok")))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.audioSeconds.WithLabelValues("quantized")), 0.001)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.available.WithLabelValues("quantized")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.available.WithLabelValues("baseline")))
}

func TestClose(t *testing.T) {
	fakes := map[string]*fakeTranscriber{
		"quantized": {closeErr: errors.New("close a")},
		"baseline":  {closeErr: errors.New("close b")},
	}
	e := NewEngine(16000, nil)
	require.NoError(t, e.Load(context.Background(), testConfigs(), fakeFactory(fakes)))

	err := e.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close a")
	assert.Contains(t, err.Error(), "close b")
	assert.True(t, fakes["quantized"].closed.Load())
	assert.True(t, fakes["baseline"].closed.Load())
	assert.Empty(t, e.Models())
}
