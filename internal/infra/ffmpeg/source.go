// Package ffmpeg decodes video files through an ffmpeg subprocess.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/decoder"
	"go.uber.org/zap"
)

// Name is the decoder registry key of this backend.
const Name = "ffmpeg"

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

	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	src := &Source{
		video:  video,
		logger: o.logger,
		info: port.SourceInfo{
			FrameCount: video.Frames(),
			Duration:   video.Duration(),
			FPS:        video.FPS(),
			Width:      video.Width(),
			Height:     video.Height(),
		},
	}

	o.logger.Debug("video opened",
		zap.String("path", path),
		zap.String("codec", video.Codec()),
		zap.Int("width", src.info.Width),
		zap.Int("height", src.info.Height),
		zap.Int("frames", src.info.FrameCount),
		zap.Float64("duration", src.info.Duration),
	)
	return src, nil
}

// Source reads RGBA frames from an ffmpeg pipe. The frame buffer is reused
// between reads.
type Source struct {
	video  *vidio.Video
	logger *zap.Logger
	info   port.SourceInfo
	next   int
	closed bool
}

func (s *Source) Next(ctx context.Context) (*entity.Frame, error) {
	if s.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Read reports false both at end of file and when ffmpeg stops producing
	// complete frames; either way the stream is over.
	if !s.video.Read() {
		return nil, io.EOF
	}

	frame := &entity.Frame{
		Index:    s.next,
		Width:    s.video.Width(),
		Height:   s.video.Height(),
		Channels: 4,
		Pix:      s.video.FrameBuffer(),
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
	s.video.Close()
	s.logger.Debug("video closed", zap.Int("frames_read", s.next))
	return nil
}
