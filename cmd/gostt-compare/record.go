package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-compare/internal/audio"
	"github.com/chaz8081/gostt-compare/internal/compare"
)

// minRecording is the shortest capture worth transcribing.
const minRecording = 300 * time.Millisecond

// mp3SampleRate is the rate recordings are saved at as MP3.
const mp3SampleRate = 44100

func newRecordCmd(a *app) *cobra.Command {
	var (
		duration  time.Duration
		savePath  string
		modelIDs  []string
		reference string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the default microphone, then transcribe with every model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
			if err != nil {
				return fmt.Errorf("initializing audio recorder: %w (ensure microphone access is granted)", err)
			}
			defer recorder.Close()

			stop := make(chan struct{})
			if duration > 0 {
				fmt.Printf("Recording for %s... (Ctrl+C to abort)\n", duration)
				time.AfterFunc(duration, func() { close(stop) })
			} else {
				fmt.Println("Recording... press Enter to stop.")
				go func() {
					_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
					close(stop)
				}()
			}

			clip, err := recorder.Record(ctx, stop)
			if err != nil {
				return fmt.Errorf("recording: %w", err)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if clip == nil || clip.Duration() < minRecording {
				return compare.ErrNoAudio
			}
			fmt.Printf("Captured %.1fs of audio\n", clip.Duration().Seconds())

			if savePath != "" {
				if err := saveClip(savePath, clip); err != nil {
					return err
				}
				fmt.Printf("Saved recording to %s\n", savePath)
			}

			return runComparison(ctx, cfg, modelIDs, clip, reference, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long instead of waiting for Enter")
	cmd.Flags().StringVar(&savePath, "save", "", "also save the recording (.wav or .mp3)")
	cmd.Flags().StringSliceVarP(&modelIDs, "model", "m", nil, "model id to run (repeatable; default: all)")
	cmd.Flags().StringVar(&reference, "reference", "", "reference transcript for WER/CER scoring")
	return cmd
}

// saveClip writes clip to path, picking the encoder from the extension.
func saveClip(path string, clip *audio.Clip) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".wav" && ext != ".mp3" {
		return fmt.Errorf("--save: unsupported extension %q (use .wav or .mp3)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch ext {
	case ".mp3":
		mp3Clip := clip.To(mp3SampleRate)
		err = audio.EncodeMP3(f, mp3Clip.Samples, mp3Clip.SampleRate)
	default:
		err = audio.EncodeWAV(f, clip.Samples, clip.SampleRate)
	}
	if err != nil {
		slog.Error("saving recording failed", "path", path, "error", err)
	}
	return err
}
