package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-pose-service/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PoseExtractor turns a local video into a spooled landmark table.
type PoseExtractor interface {
	Run(ctx context.Context, path string) (*pipeline.Output, error)
}

type ExtractPoseUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	extractor PoseExtractor
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ExtractPoseConfig struct {
	TempDir    string
	MaxRetries int
}

func NewExtractPoseUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	extractor PoseExtractor,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExtractPoseConfig,
) *ExtractPoseUseCase {
	return &ExtractPoseUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

// CSVKey is where the landmark table of a job is stored.
func CSVKey(userID string, jobID fmt.Stringer) string {
	return fmt.Sprintf("%s/pose_landmarks_%s.csv", userID, jobID)
}

// Execute handles one raw PoseExtractionMessage. A nil return acks the
// message; an error asks the consumer to requeue it.
func (uc *ExtractPoseUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractPoseUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.PoseExtractionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if errors.Is(err, port.ErrJobNotFound) {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	} else if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, skipping redelivery")
		return nil
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.extract(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}
	if job.Status != entity.JobStatusCompleted {
		return nil
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ExtractPoseUseCase) extract(
	ctx context.Context,
	job *entity.Job,
	msg entity.PoseExtractionMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+videoExt(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Run the landmark pipeline
	exStart := time.Now()
	ctx3, spanEx := tracer.Start(ctx, "extract_landmarks")
	out, err := uc.extractor.Run(ctx3, videoPath)
	spanEx.End()
	if err != nil {
		log.Error("landmark extraction failed", zap.Error(err))
		if isPermanent(err) {
			job.ExhaustRetries()
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "extract_landmarks: "+err.Error(), log)
	}
	defer out.Close()
	metrics.JobProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())

	// Upload CSV to MinIO
	upStart := time.Now()
	ctx4, spanUp := tracer.Start(ctx, "upload_csv")
	csvKey := CSVKey(msg.UserID, job.ID)
	if err := uc.storage.UploadCSV(ctx4, csvKey, out, out.Size()); err != nil {
		spanUp.End()
		log.Error("csv upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_csv: "+err.Error(), log)
	}
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(csvKey, out.Rows, out.DetectedFrames, out.Source.Duration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", out.Rows),
		zap.Int("detected_frames", out.DetectedFrames),
		zap.Float64("duration_secs", out.Source.Duration),
		zap.String("csv_key", csvKey),
	)

	return nil
}

// isPermanent reports failures that another attempt on the same input cannot
// fix.
func isPermanent(err error) bool {
	var openErr *pipeline.OpenError
	return errors.As(err, &openErr) || errors.Is(err, pipeline.ErrSchemaViolation)
}

func videoExt(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ext == "" {
		return ".mp4"
	}
	return ext
}

func (uc *ExtractPoseUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.PoseExtractionMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ExtractPoseUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.PoseExtractionMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, port.FailureNotice{
			UserEmail: msg.UserEmail,
			JobID:     job.ID.String(),
			VideoKey:  msg.VideoKey,
			Reason:    errMsg,
			Attempts:  job.Attempt,
		})
	}

	return nil
}

func (uc *ExtractPoseUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.PoseStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		CSVKey:         job.CSVKey,
		FrameCount:     job.FrameCount,
		DetectedFrames: job.DetectedFrames,
		Duration:       job.VideoDuration,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
