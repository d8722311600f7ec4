package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-compare/internal/compare"
	"github.com/chaz8081/gostt-compare/internal/server"
	"github.com/chaz8081/gostt-compare/internal/transcribe"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load every configured model and serve the comparison UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			printBanner(cfg, cfg.Models)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			engine := compare.NewEngine(int(cfg.Audio.SampleRate), compare.NewMetrics(reg))
			defer func() {
				if err := engine.Close(); err != nil {
					slog.Error("closing models", "error", err)
				}
			}()

			slog.Info("loading models", "count", len(cfg.Models))
			if err := engine.Load(ctx, cfg.Models, transcribe.New); err != nil {
				return err
			}
			if engine.Available() == 0 {
				slog.Warn("no model could be loaded; every request will fail until the model files are in place (see 'gostt-compare models download')")
			}

			srv := server.New(cfg.Server, engine, reg)
			slog.Info("ready", "url", "http://"+cfg.Server.Addr, "models_available", engine.Available())
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
