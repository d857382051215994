//go:build gocv

package opencv

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/decoder"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const Name = "opencv"

func init() {
	decoder.Register(Name, func(logger *zap.Logger) port.SourceOpener {
		return NewSourceOpener(logger)
	})
}

type SourceOpener struct {
	logger *zap.Logger
}

func NewSourceOpener(logger *zap.Logger) *SourceOpener {
	return &SourceOpener{logger: logger}
}

func (o *SourceOpener) Open(ctx context.Context, path string) (port.FrameSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opencv: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("opencv: cannot decode %s", path)
	}

	src := &Source{
		capture: vc,
		bgr:     gocv.NewMat(),
		rgb:     gocv.NewMat(),
		logger:  o.logger,
		info: port.SourceInfo{
			FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
			FPS:        vc.Get(gocv.VideoCaptureFPS),
			Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		},
	}
	if src.info.FPS > 0 {
		src.info.Duration = float64(src.info.FrameCount) / src.info.FPS
	}
	return src, nil
}

// Source reads frames with VideoCapture and converts them from OpenCV's BGR
// order to RGB.
type Source struct {
	capture *gocv.VideoCapture
	bgr     gocv.Mat
	rgb     gocv.Mat
	logger  *zap.Logger
	info    port.SourceInfo
	next    int
	closed  bool
}

func (s *Source) Next(ctx context.Context) (*entity.Frame, error) {
	if s.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.capture.Read(&s.bgr); !ok || s.bgr.Empty() {
		return nil, io.EOF
	}

	gocv.CvtColor(s.bgr, &s.rgb, gocv.ColorBGRToRGB)

	frame := &entity.Frame{
		Index:    s.next,
		Width:    s.rgb.Cols(),
		Height:   s.rgb.Rows(),
		Channels: s.rgb.Channels(),
		Pix:      s.rgb.ToBytes(),
	}
	s.next++
	return frame, nil
}

func (s *Source) Info() port.SourceInfo {
	return s.info
}

func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.bgr.Close()
	s.rgb.Close()
	if err := s.capture.Close(); err != nil {
		return fmt.Errorf("close capture: %w", err)
	}
	s.logger.Debug("video closed", zap.Int("frames_read", s.next))
	return nil
}
