// Package app assembles the landmark pipeline from configuration for the
// binaries under cmd/.
package app

import (
	"fmt"
	"os"

	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/internal/infra/decoder"
	"github.com/fiapx/fiapx-pose-service/internal/infra/mediapipe"
	"github.com/fiapx/fiapx-pose-service/internal/pipeline"
	"go.uber.org/zap"

	_ "github.com/fiapx/fiapx-pose-service/internal/infra/ffmpeg"
	_ "github.com/fiapx/fiapx-pose-service/internal/infra/opencv"
)

func EstimatorConfig(cfg *config.Config) mediapipe.Config {
	return mediapipe.Config{
		Command:                cfg.PoseWorkerCmd,
		Args:                   cfg.PoseWorkerArgs,
		ModelComplexity:        cfg.PoseModelComplexity,
		MinDetectionConfidence: cfg.PoseMinDetectionConfidence,
		MinTrackingConfidence:  cfg.PoseMinTrackingConfidence,
		StartTimeout:           cfg.PoseWorkerStartTimeout,
	}
}

// NewPipeline wires the configured frame decoder and the MediaPipe worker
// into a pipeline spooling to cfg.TempDir.
func NewPipeline(cfg *config.Config, logger *zap.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	opener, err := decoder.Open(cfg.FrameDecoder, logger)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	estimators := mediapipe.NewFactory(EstimatorConfig(cfg), logger)

	logger.Info("pipeline configured",
		zap.String("decoder", cfg.FrameDecoder),
		zap.Strings("available_decoders", decoder.Backends()),
		zap.String("pose_worker", cfg.PoseWorkerCmd),
		zap.Int("model_complexity", cfg.PoseModelComplexity),
	)

	opts = append([]pipeline.Option{pipeline.WithSpoolDir(cfg.TempDir)}, opts...)
	return pipeline.New(opener, estimators, logger, opts...), nil
}
