// Package server exposes the model comparison over HTTP: a browser UI, a
// JSON API, a websocket event stream and Prometheus metrics.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/compare"
	"github.com/chaz8081/gostt-compare/internal/config"
)

//go:embed web/index.html
var webFS embed.FS

var indexTmpl = template.Must(template.ParseFS(webFS, "web/index.html"))

const shutdownTimeout = 10 * time.Second

// Engine is the part of compare.Engine the server depends on.
type Engine interface {
	Models() []compare.ModelInfo
	Transcribe(ctx context.Context, id string, clip *audio.Clip) (compare.Result, error)
	TranscribeAll(ctx context.Context, clip *audio.Clip, reference string) ([]compare.Result, error)
	OnEvent(fn func(compare.Event))
}

// Server serves the comparison UI and API.
type Server struct {
	cfg      config.ServerConfig
	engine   Engine
	hub      *Hub
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	mux      *http.ServeMux
}

// New wires routes for engine. Engine events are broadcast to websocket
// clients. reg backs /metrics; a nil reg gets a fresh registry.
func New(cfg config.ServerConfig, engine Engine, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		hub:      NewHub(engine.Models),
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gostt_compare",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by handler and status code.",
		}, []string{"handler", "code"}),
		mux: http.NewServeMux(),
	}
	reg.MustRegister(s.requests)

	engine.OnEvent(func(ev compare.Event) {
		s.hub.Broadcast(ev)
	})

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /api/models", s.instrument("models", s.handleModels))
	s.mux.Handle("POST /api/transcribe/{id}", s.instrument("transcribe", s.handleTranscribe))
	s.mux.Handle("POST /api/compare", s.instrument("compare", s.handleCompare))
	s.mux.Handle("GET /ws", s.hub)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerCounter(s.requests.MustCurryWith(prometheus.Labels{"handler": name}), h)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Requests get their own base context so cancelling ctx drains them
	// through Shutdown instead of aborting them.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown timed out, aborting requests", "error", err)
		cancelBase()
		_ = srv.Close()
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
