package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/compare"
)

// multipartMemory is the in-memory part of a parsed upload; the rest spills
// to temp files.
const multipartMemory = 8 << 20

var errUploadTooLarge = errors.New("server: upload too large")

type errorBody struct {
	Error string `json:"error"`
}

type indexData struct {
	Title  string
	Models []compare.ModelInfo
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{Title: s.cfg.Title, Models: s.engine.Models()}
	if err := indexTmpl.Execute(w, data); err != nil {
		slog.Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := 0
	models := s.engine.Models()
	for _, m := range models {
		if m.Available {
			available++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"models": len(models), "available": available})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Models())
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	clip, _, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.engine.Transcribe(r.Context(), id, clip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	clip, reference, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := s.engine.TranscribeAll(r.Context(), clip, reference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// readUpload parses the multipart "audio" file and the optional "reference"
// text field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*audio.Clip, string, error) {
	if s.cfg.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, "", fmt.Errorf("%w: limit is %d MB", errUploadTooLarge, s.cfg.MaxUploadMB)
		case errors.Is(err, http.ErrNotMultipart):
			return nil, "", compare.ErrNoAudio
		default:
			return nil, "", fmt.Errorf("server: parse upload: %w", err)
		}
	}
	reference := r.FormValue("reference")

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, reference, compare.ErrNoAudio
		}
		return nil, reference, fmt.Errorf("server: read audio field: %w", err)
	}
	defer file.Close()

	if hdr.Size == 0 {
		return nil, reference, compare.ErrNoAudio
	}

	clip, err := audio.Decode(file, hdr.Filename)
	if err != nil {
		return nil, reference, err
	}
	slog.Debug("audio received", "file", hdr.Filename, "format", clip.Format,
		"rate", clip.SampleRate, "channels", clip.Channels, "duration", clip.Duration())
	return clip, reference, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, compare.ErrNoAudio), errors.Is(err, audio.ErrEmptyAudio),
		errors.Is(err, audio.ErrInvalidAudio):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, compare.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, compare.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
