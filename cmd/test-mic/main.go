// Command test-mic is a manual test for microphone capture.
// It records for a few seconds and writes the clip to disk so it can be
// played back.
//
// Usage:
//
//	go run ./cmd/test-mic [--seconds 3] [--out mic.wav]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/gostt-compare/internal/audio"
)

func main() {
	seconds := flag.Int("seconds", 3, "recording length in seconds")
	out := flag.String("out", "mic.wav", "output file (.wav or .mp3)")
	rate := flag.Uint("rate", 16000, "capture sample rate")
	flag.Parse()

	rec, err := audio.NewRecorder(uint32(*rate), 1)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	fmt.Printf("Recording %ds at %d Hz in...\n", *seconds, *rate)
	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}
	fmt.Println("Speak now!")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*seconds)*time.Second)
	defer cancel()
	clip, err := rec.Record(ctx, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if clip == nil {
		fmt.Println("No audio captured.")
		os.Exit(1)
	}

	var peak float32
	for _, s := range clip.Samples {
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	fmt.Printf("Captured %.2fs, peak level %.3f\n", clip.Duration().Seconds(), peak)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(*out), ".mp3") {
		c := clip.To(44100)
		err = audio.EncodeMP3(f, c.Samples, c.SampleRate)
	} else {
		err = audio.EncodeWAV(f, clip.Samples, clip.SampleRate)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("\nDone! Wrote %s\n", *out)
}
