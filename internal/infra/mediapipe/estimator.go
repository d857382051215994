// Package mediapipe runs MediaPipe Pose in a Python worker process.
//
// The worker reads length-prefixed msgpack requests on stdin, one per frame,
// and answers each with one length-prefixed msgpack response on stdout. Before
// the first request it announces itself with a ready message once the model is
// loaded. Its stderr is relayed to the logger.
package mediapipe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
)

type Config struct {
	Command                string
	Args                   []string
	Env                    []string
	ModelComplexity        int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	StartTimeout           time.Duration
	StopTimeout            time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartTimeout <= 0 {
		c.StartTimeout = 60 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 2 * time.Second
	}
	if c.MinDetectionConfidence <= 0 {
		c.MinDetectionConfidence = 0.5
	}
	if c.MinTrackingConfidence <= 0 {
		c.MinTrackingConfidence = 0.5
	}
	return c
}

type Factory struct {
	cfg    Config
	logger *zap.Logger
}

func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg.withDefaults(), logger: logger}
}

func (f *Factory) NewEstimator(ctx context.Context) (port.PoseEstimator, error) {
	return Start(ctx, f.cfg, f.logger)
}

// Estimator owns one worker process. It is not safe for concurrent use.
type Estimator struct {
	cfg    Config
	logger *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	seq     uint64
	broken  error
	exited  chan struct{}
	waitErr error
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Start spawns the worker and blocks until it reports the model as loaded.
// The process is killed when ctx is cancelled.
func Start(ctx context.Context, cfg Config, logger *zap.Logger) (*Estimator, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("pose worker command is required")
	}
	cfg = cfg.withDefaults()

	args := append([]string{}, cfg.Args...)
	args = append(args,
		"--model-complexity", fmt.Sprintf("%d", cfg.ModelComplexity),
		"--min-detection-confidence", fmt.Sprintf("%.2f", cfg.MinDetectionConfidence),
		"--min-tracking-confidence", fmt.Sprintf("%.2f", cfg.MinTrackingConfidence),
	)

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pose worker: %w", err)
	}

	e := &Estimator{
		cfg:    cfg,
		logger: logger.With(zap.Int("worker_pid", cmd.Process.Pid)),
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		exited: make(chan struct{}),
	}

	e.wg.Add(1)
	go e.logStderr(stderr)

	go func() {
		e.waitErr = cmd.Wait()
		close(e.exited)
	}()

	if err := e.awaitReady(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Estimator) awaitReady() error {
	ready := make(chan error, 1)
	go func() {
		var resp response
		if err := readMessage(e.stdout, &resp); err != nil {
			ready <- fmt.Errorf("%w: read ready message: %v", port.ErrEstimatorUnavailable, err)
			return
		}
		if !resp.Ready {
			ready <- fmt.Errorf("%w: worker did not report ready: %s", port.ErrEstimatorUnavailable, resp.Error)
			return
		}
		e.logger.Info("pose worker ready", zap.String("model", resp.Model))
		ready <- nil
	}()

	select {
	case err := <-ready:
		return err
	case <-time.After(e.cfg.StartTimeout):
		return fmt.Errorf("%w: worker not ready after %s", port.ErrEstimatorUnavailable, e.cfg.StartTimeout)
	}
}

// Process sends one frame and waits for its landmarks. A worker-reported
// inference error affects only this frame; a transport failure leaves the
// estimator unusable and wraps port.ErrEstimatorUnavailable.
func (e *Estimator) Process(ctx context.Context, frame *entity.Frame) (entity.PoseResult, error) {
	if e.broken != nil {
		return entity.PoseResult{}, e.broken
	}
	if err := ctx.Err(); err != nil {
		return entity.PoseResult{}, err
	}

	e.seq++
	req := request{
		Seq:       e.seq,
		Width:     frame.Width,
		Height:    frame.Height,
		Channels:  frame.Channels,
		FrameData: frame.Pix,
	}
	if err := writeMessage(e.stdin, req); err != nil {
		return entity.PoseResult{}, e.markBroken(err)
	}

	var resp response
	if err := readMessage(e.stdout, &resp); err != nil {
		return entity.PoseResult{}, e.markBroken(err)
	}
	if resp.Seq != req.Seq {
		return entity.PoseResult{}, e.markBroken(fmt.Errorf("response for seq %d, want %d", resp.Seq, req.Seq))
	}
	if resp.Error != "" {
		return entity.PoseResult{}, fmt.Errorf("pose worker: %s", resp.Error)
	}
	if len(resp.Landmarks) == 0 {
		return entity.NotDetected(), nil
	}

	kps := make([]entity.Keypoint, len(resp.Landmarks))
	for i, lm := range resp.Landmarks {
		kps[i] = entity.Keypoint{X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: lm.Visibility}
	}
	return entity.Detected(kps), nil
}

func (e *Estimator) markBroken(err error) error {
	select {
	case <-e.exited:
		err = fmt.Errorf("%v (worker exited: %v)", err, e.waitErr)
	default:
	}
	e.broken = fmt.Errorf("%w: %v", port.ErrEstimatorUnavailable, err)
	return e.broken
}

// Close asks the worker to exit by closing its stdin and kills it if it does
// not exit within StopTimeout.
func (e *Estimator) Close() error {
	e.closeOnce.Do(func() {
		e.stdin.Close()

		select {
		case <-e.exited:
		case <-time.After(e.cfg.StopTimeout):
			e.logger.Warn("pose worker did not exit, killing")
			if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				e.closeErr = fmt.Errorf("kill pose worker: %w", err)
			}
			<-e.exited
		}
		e.wg.Wait()
		e.logger.Debug("pose worker stopped", zap.Uint64("frames", e.seq))
	})
	return e.closeErr
}

// logStderr maps the worker's "[LEVEL] message" lines onto the logger.
func (e *Estimator) logStderr(stderr io.Reader) {
	defer e.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"), strings.HasPrefix(line, "Traceback"):
			e.logger.Error("pose worker", zap.String("line", line))
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			e.logger.Warn("pose worker", zap.String("line", line))
		default:
			e.logger.Debug("pose worker", zap.String("line", line))
		}
	}
}
