package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Summary describes a completed run.
type Summary struct {
	Rows            int
	DetectedFrames  int
	EstimatorErrors int
	Source          port.SourceInfo
	Elapsed         time.Duration
}

// Progress receives run events. Frame is called after each row is written.
type Progress interface {
	Start(info port.SourceInfo)
	Frame(index int, detected bool)
}

type Option func(*Pipeline)

// WithSpoolDir sets where Run keeps the table until it is handed out. The
// default is os.TempDir.
func WithSpoolDir(dir string) Option {
	return func(p *Pipeline) { p.spoolDir = dir }
}

func WithProgress(progress Progress) Option {
	return func(p *Pipeline) { p.progress = progress }
}

type Pipeline struct {
	opener     port.SourceOpener
	estimators port.EstimatorFactory
	logger     *zap.Logger
	spoolDir   string
	progress   Progress
}

func New(opener port.SourceOpener, estimators port.EstimatorFactory, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		opener:     opener,
		estimators: estimators,
		logger:     logger,
		spoolDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunTo processes the video at path and streams the table into w. Rows already
// written to w stay there when the run fails; use Run to get all-or-nothing
// output.
func (p *Pipeline) RunTo(ctx context.Context, path string, w io.Writer) (Summary, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "Pipeline.Run",
		trace.WithAttributes(attribute.String("video.path", path)),
	)
	defer span.End()

	start := time.Now()
	r := &run{
		pipeline: p,
		log:      p.logger.With(zap.String("video", path)),
		table:    NewTableWriter(w),
	}

	summary, err := r.execute(ctx, path)
	summary.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.rows", summary.Rows),
		attribute.Int("pipeline.detected_frames", summary.DetectedFrames),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PipelineRunsTotal.WithLabelValues(resultLabel(err)).Inc()
		r.log.Warn("pipeline failed",
			zap.Error(err),
			zap.Int("rows", summary.Rows),
			zap.Stringer("state", r.m.state),
		)
		return Summary{}, err
	}

	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("pipeline").Observe(summary.Elapsed.Seconds())
	r.log.Info("pipeline completed",
		zap.Int("rows", summary.Rows),
		zap.Int("detected_frames", summary.DetectedFrames),
		zap.Int("estimator_errors", summary.EstimatorErrors),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func resultLabel(err error) string {
	var openErr *OpenError
	switch {
	case errors.As(err, &openErr):
		return "open_error"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// run is the state of a single invocation. It owns the source and estimator
// exclusively until they are released.
type run struct {
	pipeline  *Pipeline
	log       *zap.Logger
	table     *TableWriter
	m         machine
	source    port.FrameSource
	estimator port.PoseEstimator
	summary   Summary
}

func (r *run) execute(ctx context.Context, path string) (Summary, error) {
	source, err := r.pipeline.opener.Open(ctx, path)
	if err != nil {
		return r.fail(&OpenError{Path: path, Err: err})
	}
	r.source = source
	if err := r.transition(StateOpened); err != nil {
		return r.fail(err)
	}
	defer r.release()

	if info, ok := source.(port.InfoReporter); ok {
		r.summary.Source = info.Info()
	}

	estimator, err := r.pipeline.estimators.NewEstimator(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("create pose estimator: %w", err))
	}
	r.estimator = estimator

	if err := r.table.Begin(Columns()); err != nil {
		return r.fail(fmt.Errorf("write header: %w", err))
	}
	if err := r.transition(StateStreaming); err != nil {
		return r.fail(err)
	}

	if r.pipeline.progress != nil {
		r.pipeline.progress.Start(r.summary.Source)
	}

	if err := r.stream(ctx); err != nil {
		return r.fail(err)
	}

	r.release()
	if err := r.table.Finalize(); err != nil {
		return r.fail(fmt.Errorf("finalize table: %w", err))
	}
	if err := r.transition(StateFinalized); err != nil {
		return r.fail(err)
	}
	return r.summary, nil
}

func (r *run) stream(ctx context.Context) error {
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled after %d frames: %w", index, err)
		}

		frame, err := r.source.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("cancelled after %d frames: %w", index, ctxErr)
			}
			if !errors.Is(err, io.EOF) {
				r.log.Warn("frame decode failed, ending stream", zap.Int("frame", index), zap.Error(err))
			}
			return nil
		}
		if frame.Index != index {
			return fmt.Errorf("source returned frame %d, want %d", frame.Index, index)
		}
		metrics.FramesDecodedTotal.Inc()

		result, err := r.estimator.Process(ctx, frame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("cancelled at frame %d: %w", index, ctxErr)
			}
			if errors.Is(err, port.ErrEstimatorUnavailable) {
				return fmt.Errorf("estimate frame %d: %w", index, err)
			}
			r.log.Warn("pose estimation failed, emitting empty row", zap.Int("frame", index), zap.Error(err))
			metrics.PoseEstimationsTotal.WithLabelValues("error").Inc()
			r.summary.EstimatorErrors++
			result = entity.NotDetected()
		} else if result.IsDetected() {
			metrics.PoseEstimationsTotal.WithLabelValues("detected").Inc()
		} else {
			metrics.PoseEstimationsTotal.WithLabelValues("not_detected").Inc()
		}

		row, err := EncodeRow(index, result)
		if err != nil {
			return err
		}
		if err := r.table.Append(row); err != nil {
			return fmt.Errorf("append row %d: %w", index, err)
		}

		r.summary.Rows++
		if result.IsDetected() {
			r.summary.DetectedFrames++
		}
		if r.pipeline.progress != nil {
			r.pipeline.progress.Frame(index, result.IsDetected())
		}
	}
}

// release closes the estimator and the source, each at most once.
func (r *run) release() {
	if r.estimator != nil {
		if err := r.estimator.Close(); err != nil {
			r.log.Warn("close pose estimator", zap.Error(err))
		}
		r.estimator = nil
	}
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			r.log.Warn("close frame source", zap.Error(err))
		}
		r.source = nil
	}
}

func (r *run) fail(err error) (Summary, error) {
	r.release()
	if r.m.state != StateFailed {
		_ = r.m.to(StateFailed)
	}
	return r.summary, err
}

func (r *run) transition(next State) error {
	from := r.m.state
	if err := r.m.to(next); err != nil {
		return err
	}
	r.log.Debug("pipeline state", zap.Stringer("from", from), zap.Stringer("to", next))
	return nil
}
