// Package models fetches ggml model files for the configured whisper models.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/chaz8081/gostt-compare/internal/config"
)

// ErrNoDownloadURL is returned when a whisper model has no download_url and
// its file is missing.
var ErrNoDownloadURL = errors.New("models: no download URL configured")

// Downloader downloads model files over HTTP.
type Downloader struct {
	Client *http.Client
	// Out receives progress lines. Nil discards them.
	Out io.Writer
}

// NewDownloader returns a Downloader printing progress to out.
func NewDownloader(out io.Writer) *Downloader {
	return &Downloader{Client: http.DefaultClient, Out: out}
}

func (d *Downloader) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}

// Download fetches cfg.DownloadURL into cfg.ModelPath. It returns true when
// a file was written and false when the model was already present.
func (d *Downloader) Download(ctx context.Context, cfg config.ModelConfig) (bool, error) {
	destPath := cfg.ModelPath
	out := d.out()

	// Check if already downloaded
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  %s: already exists at %s (%s)\n", cfg.ID, destPath, humanize.Bytes(uint64(info.Size())))
		return false, nil
	}
	if cfg.DownloadURL == "" {
		return false, fmt.Errorf("%w for model %q (place the file at %s)", ErrNoDownloadURL, cfg.ID, destPath)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return false, fmt.Errorf("models: creating models dir: %w", err)
	}

	fmt.Fprintf(out, "  %s: downloading %s\n", cfg.ID, cfg.DownloadURL)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.DownloadURL, nil)
	if err != nil {
		return false, fmt.Errorf("models: building request for %q: %w", cfg.ID, err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("models: downloading %q: %w", cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("models: download %q failed: HTTP %d", cfg.ID, resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("models: creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  cfg.ID,
	}

	written, err := io.Copy(pw, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return false, fmt.Errorf("models: writing %q: %w", cfg.ID, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmpPath)
		return false, fmt.Errorf("models: %q truncated: got %d of %d bytes", cfg.ID, written, resp.ContentLength)
	}

	fmt.Fprintf(out, "\n  Downloaded %s\n", humanize.Bytes(uint64(written)))

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return false, fmt.Errorf("models: moving model file: %w", err)
	}

	slog.Info("model downloaded", "model", cfg.ID, "path", destPath, "bytes", written)
	return true, nil
}

// DownloadAll downloads every whisper model in cfgs. Remote models are
// skipped, as are missing models with no URL; those are reported but do not
// fail the run.
func (d *Downloader) DownloadAll(ctx context.Context, cfgs []config.ModelConfig) error {
	out := d.out()
	for i, cfg := range cfgs {
		fmt.Fprintf(out, "[%d/%d] %s (%s)\n", i+1, len(cfgs), cfg.Label, cfg.ID)

		if cfg.Backend == config.BackendRemote {
			fmt.Fprintf(out, "  %s: remote backend, nothing to download\n", cfg.ID)
			continue
		}

		if _, err := d.Download(ctx, cfg); err != nil {
			if errors.Is(err, ErrNoDownloadURL) {
				fmt.Fprintf(out, "  %s: skipped: %v\n", cfg.ID, err)
				slog.Warn("model has no download URL", "model", cfg.ID, "path", cfg.ModelPath)
				continue
			}
			return err
		}
	}
	return nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %s / %s (%.0f%%)",
			pw.label,
			humanize.Bytes(uint64(pw.written)),
			humanize.Bytes(uint64(pw.total)),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %s downloaded",
			pw.label,
			humanize.Bytes(uint64(pw.written)))
	}
	return n, err
}
