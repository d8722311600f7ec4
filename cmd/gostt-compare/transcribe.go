package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/compare"
	"github.com/chaz8081/gostt-compare/internal/config"
	"github.com/chaz8081/gostt-compare/internal/transcribe"
)

func newTranscribeCmd(a *app) *cobra.Command {
	var (
		modelIDs  []string
		reference string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <file.wav|file.mp3>",
		Short: "Transcribe an audio file with every configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			clip, err := audio.Decode(f, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Printf("Decoded %s: %s, %d Hz, %d ch, %.1fs\n",
				args[0], clip.Format, clip.SampleRate, clip.Channels, clip.Duration().Seconds())

			return runComparison(cmd.Context(), a.cfg, modelIDs, clip, reference, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVarP(&modelIDs, "model", "m", nil, "model id to run (repeatable; default: all)")
	cmd.Flags().StringVar(&reference, "reference", "", "reference transcript for WER/CER scoring")
	return cmd
}

// runComparison loads the selected models, runs clip through them and
// prints one block per model.
func runComparison(ctx context.Context, cfg *config.Config, ids []string, clip *audio.Clip, reference string, out io.Writer) error {
	models, err := selectModels(cfg, ids)
	if err != nil {
		return err
	}

	engine := compare.NewEngine(int(cfg.Audio.SampleRate), nil)
	defer func() { _ = engine.Close() }()

	if err := engine.Load(ctx, models, transcribe.New); err != nil {
		return err
	}

	results, err := engine.TranscribeAll(ctx, clip, reference)
	if err != nil {
		return err
	}
	printResults(out, results)

	for _, r := range results {
		if r.Err == nil {
			return nil
		}
	}
	return fmt.Errorf("every model failed")
}

func printResults(out io.Writer, results []compare.Result) {
	for _, r := range results {
		fmt.Fprintf(out, "\n--- %s (%s) ---\n", r.Label, r.ModelID)
		if r.Err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", r.Err)
			continue
		}
		fmt.Fprintln(out, r.Text)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  elapsed\t%d ms\trtf\t%.2f\n", r.ElapsedMS, r.RTF)
		if r.WER != nil && r.CER != nil {
			fmt.Fprintf(tw, "  wer\t%.1f%%\tcer\t%.1f%%\n", r.WER.Rate*100, r.CER.Rate*100)
		}
		_ = tw.Flush()
	}
}
