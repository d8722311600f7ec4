package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-compare/internal/config"
	"github.com/chaz8081/gostt-compare/internal/models"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model files",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configured models and whether their files are present",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLABEL\tBACKEND\tLANGUAGE\tSTATUS")
				for _, m := range a.cfg.Models {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Label, m.Backend, m.Language, modelStatus(m))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "download [id...]",
			Short: "Download ggml files for configured models (default: all)",
			RunE: func(cmd *cobra.Command, args []string) error {
				selected, err := selectModels(a.cfg, args)
				if err != nil {
					return err
				}
				fmt.Println("=== Model Download ===")
				d := models.NewDownloader(cmd.OutOrStdout())
				if err := d.DownloadAll(cmd.Context(), selected); err != nil {
					return err
				}
				fmt.Println("Done.")
				return nil
			},
		},
	)
	return cmd
}

func modelStatus(m config.ModelConfig) string {
	if m.Backend == config.BackendRemote {
		return "remote: " + m.Remote.BaseURL
	}
	info, err := os.Stat(m.ModelPath)
	if err != nil {
		if m.DownloadURL == "" {
			return "missing (no download URL): " + m.ModelPath
		}
		return "missing: " + m.ModelPath
	}
	return fmt.Sprintf("ok (%s)", humanize.Bytes(uint64(info.Size())))
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
				return nil
			}
			fmt.Printf("Wrote default config to %s\n", path)
			return nil
		},
	}
}
