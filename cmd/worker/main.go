package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fiapx/fiapx-pose-service/internal/app"
	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/internal/infra/email"
	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-pose-service/internal/infra/minio"
	"github.com/fiapx/fiapx-pose-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-pose-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-pose-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-pose-service/internal/usecase"
	"github.com/fiapx/fiapx-pose-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting pose extraction worker",
		zap.String("queue", cfg.RabbitMQExtractionQueue),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("decoder", cfg.FrameDecoder),
	)

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Warn("migrations not applied", zap.String("dir", cfg.MigrationsDir), zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        cfg.MinIOEndpoint,
		AccessKey:       cfg.MinIOAccessKey,
		SecretKey:       cfg.MinIOSecretKey,
		UseSSL:          cfg.MinIOUseSSL,
		UploadBucket:    cfg.MinIOUploadBucket,
		LandmarksBucket: cfg.MinIOLandmarksBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	pubConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq")
	defer pubConn.Close()

	pub, err := rabbitmq.NewPublisher(pubConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	extractor, err := app.NewPipeline(cfg, log)
	fatalOnErr(err, "build pipeline")

	uc := usecase.NewExtractPoseUseCase(
		postgres.NewJobRepository(pool),
		storage,
		extractor,
		rabbitmq.NewStatusPublisher(pub),
		rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		log,
		usecase.ExtractPoseConfig{TempDir: cfg.TempDir, MaxRetries: cfg.MaxRetries},
	)

	metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQExtractionQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")
	defer consumer.Close()

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer stopped with error", zap.Error(err))
		return
	}
	log.Info("pose extraction worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
