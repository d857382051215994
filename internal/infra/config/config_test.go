package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pose.extraction", cfg.RabbitMQExtractionQueue)
	assert.Equal(t, "pose.extraction.dlq", cfg.RabbitMQDLQ)
	assert.Equal(t, "landmarks", cfg.MinIOLandmarksBucket)
	assert.Equal(t, "ffmpeg", cfg.FrameDecoder)
	assert.Equal(t, []string{"scripts/pose_worker.py"}, cfg.PoseWorkerArgs)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, int64(1<<30), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"mp4", "mov", "avi", "mkv", "webm"}, cfg.AllowedExtensions)
	assert.Equal(t, time.Minute, cfg.PoseWorkerStartTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FRAME_DECODER", "gocv")
	t.Setenv("POSE_WORKER_CMD", "/opt/venv/bin/python")
	t.Setenv("POSE_WORKER_ARGS", "-u /app/pose_worker.py")
	t.Setenv("POSE_MODEL_COMPLEXITY", "2")
	t.Setenv("ALLOWED_EXTENSIONS", "mp4,mkv")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gocv", cfg.FrameDecoder)
	assert.Equal(t, "/opt/venv/bin/python", cfg.PoseWorkerCmd)
	assert.Equal(t, []string{"-u", "/app/pose_worker.py"}, cfg.PoseWorkerArgs)
	assert.Equal(t, 2, cfg.PoseModelComplexity)
	assert.Equal(t, []string{"mp4", "mkv"}, cfg.AllowedExtensions)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
}

func TestLoadRejectsInvalidNumber(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}
