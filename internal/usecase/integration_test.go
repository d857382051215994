package usecase_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/email"
	"github.com/fiapx/fiapx-pose-service/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-pose-service/internal/infra/minio"
	"github.com/fiapx/fiapx-pose-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-pose-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-pose-service/internal/pipeline"
	"github.com/fiapx/fiapx-pose-service/internal/usecase"
	"github.com/fiapx/fiapx-pose-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

const (
	exchange    = "fiapx.pose"
	queue       = "pose.extraction"
	statusQueue = "pose.status"
	dlq         = "pose.extraction.dlq"
)

// centerPose puts every landmark at the frame centre, so tables are
// predictable without a model.
type centerPose struct{}

func (centerPose) Process(_ context.Context, f *entity.Frame) (entity.PoseResult, error) {
	vis := 1.0
	kps := make([]entity.Keypoint, entity.LandmarkCount)
	for i := range kps {
		kps[i] = entity.Keypoint{X: 0.5, Y: 0.5, Z: float64(f.Index), Visibility: &vis}
	}
	return entity.Detected(kps), nil
}

func (centerPose) Close() error { return nil }

type centerPoseFactory struct{}

func (centerPoseFactory) NewEstimator(context.Context) (port.PoseEstimator, error) {
	return centerPose{}, nil
}

type infra struct {
	pool        *pgxpool.Pool
	storage     *miniostorage.Storage
	minioClient *miniogo.Client
	rmqConn     *amqp.Connection
	rmqURL      string
}

func startInfra(ctx context.Context, t *testing.T) *infra {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        minioEndpoint,
		AccessKey:       "minioadmin",
		SecretKey:       "minioadmin",
		UploadBucket:    "uploads",
		LandmarksBucket: "landmarks",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	return &infra{pool: pool, storage: storage, minioClient: minioClient, rmqConn: rmqConn, rmqURL: rmqURL}
}

func (in *infra) startConsumer(ctx context.Context, t *testing.T, log *zap.Logger) *rabbitmq.Publisher {
	t.Helper()

	pub, err := rabbitmq.NewPublisher(in.rmqConn, exchange)
	require.NoError(t, err)

	p := pipeline.New(ffmpeg.NewSourceOpener(log), centerPoseFactory{}, log, pipeline.WithSpoolDir(t.TempDir()))
	uc := usecase.NewExtractPoseUseCase(
		postgres.NewJobRepository(in.pool), in.storage, p,
		rabbitmq.NewStatusPublisher(pub), rabbitmq.NewDLQPublisher(pub, dlq),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", log),
		log,
		usecase.ExtractPoseConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         in.rmqURL,
		Queue:       queue,
		Exchange:    exchange,
		DLQ:         dlq,
		StatusQueue: statusQueue,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		consumer.Start(consumerCtx)
		close(done)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		consumer.Close()
	})

	time.Sleep(500 * time.Millisecond)
	return pub
}

func TestExtractPoseEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	videoPath := filepath.Join(t.TempDir(), "test.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi",
		"-i", "testsrc=duration=2:size=320x240:rate=5",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-y", videoPath)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	in := startInfra(ctx, t)
	log, _ := logger.New("debug")

	videoKey := "testuser/test.mp4"
	_, err := in.minioClient.FPutObject(ctx, "uploads", videoKey, videoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	pub := in.startConsumer(ctx, t, log)

	jobID := uuid.New()
	videoInfo, _ := os.Stat(videoPath)
	msgBody, err := json.Marshal(entity.PoseExtractionMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	require.NoError(t, pub.PublishExtraction(ctx, msgBody))

	statusCh, err := in.rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume(statusQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.PoseStatusMessage
	select {
	case delivery := <-statusMsgs:
		require.NoError(t, json.Unmarshal(delivery.Body, &statusMsg))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Equal(t, 10, statusMsg.FrameCount)
	assert.Equal(t, 10, statusMsg.DetectedFrames)
	assert.Equal(t, "testuser/pose_landmarks_"+jobID.String()+".csv", statusMsg.CSVKey)

	obj, err := in.minioClient.GetObject(ctx, "landmarks", statusMsg.CSVKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()

	records, err := csv.NewReader(obj).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, statusMsg.FrameCount+1)
	assert.Equal(t, pipeline.Columns(), records[0])
	for i, rec := range records[1:] {
		assert.Len(t, rec, entity.RowWidth)
		assert.Equal(t, "0.5", rec[1], "row %d", i)
	}

	var dbStatus, dbCSVKey string
	var dbFrameCount int
	err = in.pool.QueryRow(ctx,
		"SELECT status, csv_key, frame_count FROM pose_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbCSVKey, &dbFrameCount)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, statusMsg.CSVKey, dbCSVKey)
	assert.Equal(t, statusMsg.FrameCount, dbFrameCount)
}

func TestExtractPoseMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	in := startInfra(ctx, t)
	log, _ := logger.New("debug")
	pub := in.startConsumer(ctx, t, log)

	require.NoError(t, pub.PublishExtraction(ctx, []byte(`{invalid json`)))

	time.Sleep(2 * time.Second)

	dlqCh, err := in.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get(dlq, true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))
}
