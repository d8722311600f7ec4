package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chaz8081/gostt-compare/internal/audio"
)

const defaultRemoteTimeout = 2 * time.Minute

// RemoteOptions configures a RemoteTranscriber.
type RemoteOptions struct {
	BaseURL    string // e.g. http://localhost:8000/v1
	Model      string
	APIKey     string
	Language   string // "auto" or "" sends no language field
	Timeout    time.Duration
	SampleRate int
	HTTPClient *http.Client
}

// RemoteTranscriber sends audio to an OpenAI-compatible transcription
// endpoint. It lets the comparison include models that only run in another
// runtime, such as a Python server hosting a quantized checkpoint.
type RemoteTranscriber struct {
	opts   RemoteOptions
	client *http.Client
}

// NewRemoteTranscriber validates opts and returns a transcriber. No request
// is made until Process is called.
func NewRemoteTranscriber(opts RemoteOptions) (*RemoteTranscriber, error) {
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.BaseURL == "" {
		return nil, errors.New("transcribe: remote base URL is required")
	}
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.Model == "" {
		return nil, errors.New("transcribe: remote model is required")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &RemoteTranscriber{opts: opts, client: client}, nil
}

// Close is a no-op; the HTTP client holds no per-model resources.
func (t *RemoteTranscriber) Close() error {
	return nil
}

type remoteResponse struct {
	Text string `json:"text"`
}

type remoteErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Process encodes samples as a 16-bit WAV and uploads them.
func (t *RemoteTranscriber) Process(ctx context.Context, samples []float32) (string, error) {
	wavData, err := audio.NewClip(samples, t.opts.SampleRate).WAVBytes()
	if err != nil {
		return "", fmt.Errorf("transcribe: remote: %w", err)
	}

	body, contentType, err := t.buildForm(wavData)
	if err != nil {
		return "", err
	}

	url := t.opts.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("transcribe: remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if t.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.opts.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: remote: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", decodeRemoteError(resp)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: remote: decode response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (t *RemoteTranscriber) buildForm(wavData []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("model", t.opts.Model); err != nil {
		return nil, "", fmt.Errorf("transcribe: remote: write model field: %w", err)
	}
	if lang := strings.TrimSpace(t.opts.Language); lang != "" && lang != "auto" {
		if err := w.WriteField("language", lang); err != nil {
			return nil, "", fmt.Errorf("transcribe: remote: write language field: %w", err)
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("transcribe: remote: write response_format field: %w", err)
	}

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: remote: create file field: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("transcribe: remote: write audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("transcribe: remote: close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func decodeRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body remoteErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return fmt.Errorf("transcribe: remote: HTTP %d: %s", resp.StatusCode, body.Error.Message)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("transcribe: remote: HTTP %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("transcribe: remote: HTTP %d", resp.StatusCode)
}
