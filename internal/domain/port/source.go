package port

import (
	"context"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// FrameSource yields decoded frames in order starting at index 0. Next returns
// io.EOF once no further frame can be decoded, whether the file ended or a
// frame failed to decode. Close is idempotent.
type FrameSource interface {
	Next(ctx context.Context) (*entity.Frame, error)
	Close() error
}

// SourceInfo is container metadata a source may report. Zero values mean unknown.
type SourceInfo struct {
	FrameCount int
	Duration   float64
	FPS        float64
	Width      int
	Height     int
}

// InfoReporter is implemented by sources that know their container metadata.
type InfoReporter interface {
	Info() SourceInfo
}

type SourceOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}
