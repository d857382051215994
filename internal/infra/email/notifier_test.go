package email

import (
	"context"
	"testing"

	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFailureMessage(t *testing.T) {
	msg := string(failureMessage("noreply@fiapx.local", port.FailureNotice{
		UserEmail: "user@example.com",
		JobID:     "job-1",
		VideoKey:  "u1/clip.mp4",
		Reason:    "failed to open video",
		Attempts:  3,
	}))

	assert.Contains(t, msg, "From: noreply@fiapx.local\r\n")
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Subject: FIAP X - Pose Extraction Failed [Job job-1]\r\n")
	assert.Contains(t, msg, "Video: u1/clip.mp4")
	assert.Contains(t, msg, "Error: failed to open video")
	assert.Contains(t, msg, "after 3 attempt(s)")
}

func TestNotifyFailureUnreachableServer(t *testing.T) {
	n := NewSMTPNotifier("127.0.0.1", 1, "noreply@fiapx.local", zap.NewNop())

	err := n.NotifyFailure(context.Background(), port.FailureNotice{UserEmail: "user@example.com", JobID: "job-1", Reason: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send email")
}
