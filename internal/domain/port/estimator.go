package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// ErrEstimatorUnavailable is wrapped by estimator errors that mean no further
// frame can be estimated, such as a crashed inference process. Any other
// Process error only affects the frame it was returned for.
var ErrEstimatorUnavailable = errors.New("pose estimator unavailable")

// PoseEstimator estimates the body pose in a single frame. Implementations
// are not reentrant and are used for one stream at a time.
type PoseEstimator interface {
	Process(ctx context.Context, frame *entity.Frame) (entity.PoseResult, error)
	Close() error
}

// EstimatorFactory creates one estimator per pipeline run.
type EstimatorFactory interface {
	NewEstimator(ctx context.Context) (PoseEstimator, error)
}
