package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
)

type fakeSource struct {
	frames   int
	failAt   int
	failWith error
	next     int
	closed   int
	info     port.SourceInfo
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{frames: frames, failAt: -1, info: port.SourceInfo{FrameCount: frames, FPS: 30}}
}

func (s *fakeSource) Next(ctx context.Context) (*entity.Frame, error) {
	if s.failAt >= 0 && s.next == s.failAt {
		if s.failWith != nil {
			return nil, s.failWith
		}
		return nil, io.EOF
	}
	if s.next >= s.frames {
		return nil, io.EOF
	}
	f := &entity.Frame{Index: s.next, Width: 2, Height: 2, Pix: make([]byte, 12)}
	s.next++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

func (s *fakeSource) Info() port.SourceInfo {
	return s.info
}

type fakeOpener struct {
	source *fakeSource
	err    error
	opened int
}

func (o *fakeOpener) Open(ctx context.Context, path string) (port.FrameSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opened++
	return o.source, nil
}

type estimateFunc func(index int) (entity.PoseResult, error)

type fakeEstimator struct {
	estimate estimateFunc
	calls    int
	closed   int
}

func (e *fakeEstimator) Process(ctx context.Context, frame *entity.Frame) (entity.PoseResult, error) {
	e.calls++
	return e.estimate(frame.Index)
}

func (e *fakeEstimator) Close() error {
	e.closed++
	return nil
}

type fakeFactory struct {
	estimator *fakeEstimator
	err       error
	created   int
}

func (f *fakeFactory) NewEstimator(ctx context.Context) (port.PoseEstimator, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	return f.estimator, nil
}

// pose builds a deterministic detected pose whose values depend on the frame
// index and landmark number.
func pose(index int) entity.PoseResult {
	kps := make([]entity.Keypoint, entity.LandmarkCount)
	for i := range kps {
		v := float64(i) / 100
		kps[i] = entity.Keypoint{
			X:          float64(index) + 0.25,
			Y:          v,
			Z:          -v,
			Visibility: &v,
		}
	}
	return entity.Detected(kps)
}

func alwaysDetected(index int) (entity.PoseResult, error) {
	return pose(index), nil
}

var errEstimator = errors.New("inference failed")
