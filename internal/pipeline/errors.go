package pipeline

import (
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

var (
	// ErrSchemaViolation is matched by every *SchemaViolationError.
	ErrSchemaViolation = errors.New("pose estimator returned an unexpected number of keypoints")

	ErrHeaderWritten = errors.New("table header already written")
	ErrNotBegun      = errors.New("table header not written")
	ErrFinalized     = errors.New("table already finalized")
)

// OpenError reports a video that could not be opened or decoded at all. No
// output is produced for it.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open video %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// SchemaViolationError reports a pose with a keypoint count other than zero or
// entity.LandmarkCount. It points at a broken estimator, not at the input.
type SchemaViolationError struct {
	Frame int
	Count int
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("frame %d: got %d keypoints, want 0 or %d", e.Frame, e.Count, entity.LandmarkCount)
}

func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}
