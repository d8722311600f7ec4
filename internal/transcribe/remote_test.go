package transcribe

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/config"
)

// parseUpload reads the multipart transcription form sent by RemoteTranscriber.
func parseUpload(t *testing.T, r *http.Request) (map[string]string, []byte) {
	t.Helper()

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("unexpected media type %q", mediaType)
	}

	reader := multipart.NewReader(r.Body, params["boundary"])
	fields := make(map[string]string)
	var fileData []byte
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		data, _ := io.ReadAll(part)
		if part.FormName() == "file" {
			fileData = data
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields, fileData
}

func TestRemoteProcess(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.25
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %q", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}

		fields, fileData := parseUpload(t, r)
		if fields["model"] != "ichigo-whisper" {
			t.Errorf("model = %q, want %q", fields["model"], "ichigo-whisper")
		}
		if fields["language"] != "vi" {
			t.Errorf("language = %q, want %q", fields["language"], "vi")
		}

		clip, err := audio.Decode(strings.NewReader(string(fileData)), "audio.wav")
		if err != nil {
			t.Errorf("uploaded file is not a decodable WAV: %v", err)
		} else {
			if clip.SampleRate != 16000 {
				t.Errorf("uploaded sample rate = %d, want 16000", clip.SampleRate)
			}
			if len(clip.Samples) != len(samples) {
				t.Errorf("uploaded %d samples, want %d", len(clip.Samples), len(samples))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  xin chào  "}`))
	}))
	defer server.Close()

	tr, err := NewRemoteTranscriber(RemoteOptions{
		BaseURL:    server.URL + "/v1/",
		Model:      "ichigo-whisper",
		APIKey:     "secret",
		Language:   "vi",
		SampleRate: 16000,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewRemoteTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	text, err := tr.Process(context.Background(), samples)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if text != "xin chào" {
		t.Errorf("text = %q, want %q", text, "xin chào")
	}
}

func TestRemoteProcessAutoLanguageOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields, _ := parseUpload(t, r)
		if _, ok := fields["language"]; ok {
			t.Errorf("language field should be omitted for auto, got %q", fields["language"])
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header should be absent without an API key")
		}
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	tr, err := NewRemoteTranscriber(RemoteOptions{
		BaseURL:  server.URL,
		Model:    "whisper-1",
		Language: "auto",
	})
	if err != nil {
		t.Fatalf("NewRemoteTranscriber: %v", err)
	}

	if _, err := tr.Process(context.Background(), make([]float32, 160)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
}

func TestRemoteProcessAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error", http.StatusBadRequest, `{"error":{"message":"audio too short","type":"invalid_request_error"}}`, "audio too short"},
		{"plain body", http.StatusServiceUnavailable, "model loading", "model loading"},
		{"empty body", http.StatusInternalServerError, "", "HTTP 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tr, err := NewRemoteTranscriber(RemoteOptions{BaseURL: server.URL, Model: "m"})
			if err != nil {
				t.Fatalf("NewRemoteTranscriber: %v", err)
			}

			_, err = tr.Process(context.Background(), make([]float32, 160))
			if err == nil {
				t.Fatal("Process should return error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRemoteProcessContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr, err := NewRemoteTranscriber(RemoteOptions{BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewRemoteTranscriber: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = tr.Process(ctx, make([]float32, 160))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Process error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewRemoteTranscriberValidation(t *testing.T) {
	if _, err := NewRemoteTranscriber(RemoteOptions{Model: "m"}); err == nil {
		t.Error("missing base URL should fail")
	}
	if _, err := NewRemoteTranscriber(RemoteOptions{BaseURL: "http://localhost"}); err == nil {
		t.Error("missing model should fail")
	}

	tr, err := NewRemoteTranscriber(RemoteOptions{BaseURL: "http://localhost/", Model: "m"})
	if err != nil {
		t.Fatalf("NewRemoteTranscriber: %v", err)
	}
	if tr.opts.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want default 16000", tr.opts.SampleRate)
	}
	if tr.opts.Timeout != defaultRemoteTimeout {
		t.Errorf("Timeout = %v, want %v", tr.opts.Timeout, defaultRemoteTimeout)
	}
	if tr.opts.BaseURL != "http://localhost" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", tr.opts.BaseURL)
	}
}

func TestNewBackendSwitch(t *testing.T) {
	remote, err := New(config.ModelConfig{
		ID:      "hosted",
		Backend: config.BackendRemote,
		Remote:  config.RemoteConfig{BaseURL: "http://localhost:8000/v1", Model: "ichigo"},
	}, 16000)
	if err != nil {
		t.Fatalf("New(remote) error = %v", err)
	}
	if _, ok := remote.(*RemoteTranscriber); !ok {
		t.Errorf("New(remote) returned %T, want *RemoteTranscriber", remote)
	}

	if _, err := New(config.ModelConfig{ID: "x", Backend: "onnx"}, 16000); err == nil {
		t.Error("New with unknown backend should fail")
	}

	if _, err := New(config.ModelConfig{ID: "x", Backend: config.BackendWhisper, ModelPath: "/nonexistent/model.bin"}, 16000); err == nil {
		t.Error("New(whisper) with missing model file should fail")
	}
}
