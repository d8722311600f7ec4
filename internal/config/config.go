package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in ModelConfig.Backend.
const (
	BackendWhisper = "whisper"
	BackendRemote  = "remote"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Audio    AudioConfig   `yaml:"audio"`
	Models   []ModelConfig `yaml:"models"`
	LogLevel string        `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	Title       string `yaml:"title"`
}

// AudioConfig holds audio settings. SampleRate is the rate every clip is
// resampled to before inference, and the capture rate of the record command.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// ModelConfig describes one model shown in the comparison.
type ModelConfig struct {
	ID          string       `yaml:"id"`
	Label       string       `yaml:"label"`
	Backend     string       `yaml:"backend"` // "whisper" or "remote"
	ModelPath   string       `yaml:"model_path"`
	DownloadURL string       `yaml:"download_url,omitempty"`
	Language    string       `yaml:"language"` // "auto" or an ISO-639-1 code
	Threads     uint         `yaml:"threads,omitempty"`
	Remote      RemoteConfig `yaml:"remote,omitempty"`
}

// RemoteConfig points a model at an OpenAI-compatible transcription endpoint.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-compare")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory model files are downloaded into.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "gostt-compare", "models")
}

// Default returns a Config with the three demo models.
func Default() *Config {
	modelsDir := DefaultModelsDir()

	return &Config{
		Server: ServerConfig{
			Addr:        "0.0.0.0:7860",
			MaxUploadMB: 50,
			Title:       "Ichigo Whisper Quantizer",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Models: []ModelConfig{
			{
				ID:          "quantized",
				Label:       "Ichigo Quantizer (Merged Codebook - Medium)",
				Backend:     BackendWhisper,
				ModelPath:   filepath.Join(modelsDir, "ggml-medium-q5_0.bin"),
				DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium-q5_0.bin",
				Language:    "vi",
			},
			{
				ID:          "baseline",
				Label:       "Whisper Medium",
				Backend:     BackendWhisper,
				ModelPath:   filepath.Join(modelsDir, "ggml-medium.bin"),
				DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
				Language:    "auto",
			},
			{
				ID:        "specialized",
				Label:     "PhoWhisper Large",
				Backend:   BackendWhisper,
				ModelPath: filepath.Join(modelsDir, "ggml-phowhisper-large.bin"),
				Language:  "vi",
			},
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in model paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	for i := range cfg.Models {
		m := &cfg.Models[i]
		m.ModelPath = expandTilde(m.ModelPath)
		if m.Backend == "" {
			m.Backend = BackendWhisper
		}
		if m.Language == "" {
			m.Language = "auto"
		}
		if m.Label == "" {
			m.Label = m.ID
		}
	}

	return cfg, nil
}

// validLanguage reports whether lang is empty, "auto", or shaped like an
// ISO-639 code. Whether the model knows the code is checked at load time.
func validLanguage(lang string) bool {
	if lang == "" || lang == "auto" {
		return true
	}
	if len(lang) < 2 || len(lang) > 3 {
		return false
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("models must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("models[%d].id must not be empty", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("models[%d].id %q is duplicated", i, m.ID)
		}
		seen[m.ID] = struct{}{}

		switch m.Backend {
		case BackendWhisper:
			if m.ModelPath == "" {
				return fmt.Errorf("models[%d] (%s): model_path must not be empty", i, m.ID)
			}
		case BackendRemote:
			if m.Remote.BaseURL == "" {
				return fmt.Errorf("models[%d] (%s): remote.base_url must not be empty", i, m.ID)
			}
			if m.Remote.Model == "" {
				return fmt.Errorf("models[%d] (%s): remote.model must not be empty", i, m.ID)
			}
		default:
			return fmt.Errorf("models[%d] (%s): backend must be \"whisper\" or \"remote\", got %q", i, m.ID, m.Backend)
		}

		if !validLanguage(m.Language) {
			return fmt.Errorf("models[%d] (%s): language must be \"auto\" or a 2-3 letter lowercase code, got %q", i, m.ID, m.Language)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// Model returns the model config with the given id.
func (c *Config) Model(id string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// WriteDefault writes the default config to DefaultConfigPath. It returns the
// written path, or "" when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# gostt-compare configuration\n")
	buf.WriteString("# backend: whisper (local ggml file) or remote (OpenAI-compatible /audio/transcriptions)\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
