package port

import (
	"context"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// StatusPublisher announces job state changes to downstream services.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.PoseStatusMessage) error
}

// DLQPublisher parks a raw message that will never be processed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
