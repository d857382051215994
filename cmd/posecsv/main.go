// Command posecsv writes the per-frame pose landmarks of a local video to a
// CSV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fiapx/fiapx-pose-service/internal/app"
	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/internal/pipeline"
	"github.com/fiapx/fiapx-pose-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	in := flag.String("in", "", "input video path")
	out := flag.String("out", "", "output CSV path (default: pose_landmarks_<input name>.csv next to the input)")
	decoderName := flag.String("decoder", "", "frame decoder backend (overrides FRAME_DECODER)")
	quiet := flag.Bool("quiet", false, "disable the progress bar")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: posecsv -in video.mp4 [-out landmarks.csv]")
		os.Exit(2)
	}
	if *out == "" {
		*out = defaultOutput(*in)
	}

	if err := run(*in, *out, *decoderName, *quiet); err != nil {
		fmt.Fprintln(os.Stderr, "posecsv:", err)
		os.Exit(1)
	}
}

func run(in, out, decoderName string, quiet bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if decoderName != "" {
		cfg.FrameDecoder = decoderName
	}
	cfg.TempDir = filepath.Dir(out)

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	var opts []pipeline.Option
	var bar *barProgress
	if !quiet {
		bar = newBarProgress(os.Stderr)
		opts = append(opts, pipeline.WithProgress(bar))
	}

	p, err := app.NewPipeline(cfg, log, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	output, err := p.Run(ctx, in)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	defer output.Close()

	if err := writeFile(out, output); err != nil {
		return err
	}

	log.Info("landmarks written",
		zap.String("output", out),
		zap.Int("rows", output.Rows),
		zap.Int("detected_frames", output.DetectedFrames),
		zap.Duration("elapsed", output.Elapsed),
	)
	return nil
}

func defaultOutput(in string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(filepath.Dir(in), "pose_landmarks_"+base+".csv")
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
