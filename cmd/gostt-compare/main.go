// Command gostt-compare transcribes one audio clip with several
// speech-to-text models and shows the results side by side.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-compare/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gostt-compare",
		Short:         "Compare speech-to-text models on the same audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init-config" {
				setupLogger(a.logLevel)
				return nil
			}
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default: ~/.config/gostt-compare/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newTranscribeCmd(a),
		newRecordCmd(a),
		newModelsCmd(a),
		newInitConfigCmd(),
	)
	return root
}

// load reads and validates the config and installs the logger.
func (a *app) load() error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	a.cfg = cfg
	setupLogger(cfg.LogLevel)
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	return config.Default(), nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, models []config.ModelConfig) {
	fmt.Println("=== gostt-compare ===")
	fmt.Printf("  Audio:   %dHz target\n", cfg.Audio.SampleRate)
	for _, m := range models {
		where := m.ModelPath
		if m.Backend == config.BackendRemote {
			where = m.Remote.BaseURL + " (" + m.Remote.Model + ")"
		}
		fmt.Printf("  Model:   %-12s %s [%s, %s] %s\n", m.ID, m.Label, m.Backend, m.Language, where)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=====================")
}

// selectModels returns the configured models named by ids, in config
// order. No ids selects every model.
func selectModels(cfg *config.Config, ids []string) ([]config.ModelConfig, error) {
	if len(ids) == 0 {
		return cfg.Models, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := cfg.Model(id); !ok {
			known := make([]string, 0, len(cfg.Models))
			for _, m := range cfg.Models {
				known = append(known, m.ID)
			}
			return nil, fmt.Errorf("unknown model %q (configured: %s)", id, strings.Join(known, ", "))
		}
		want[id] = true
	}

	out := make([]config.ModelConfig, 0, len(ids))
	for _, m := range cfg.Models {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}
