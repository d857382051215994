package decoder

import (
	"context"
	"testing"

	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOpener struct{}

func (stubOpener) Open(ctx context.Context, path string) (port.FrameSource, error) {
	return nil, nil
}

func TestRegisterAndOpen(t *testing.T) {
	Register("stub-test", func(*zap.Logger) port.SourceOpener { return stubOpener{} })

	opener, err := Open("stub-test", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, stubOpener{}, opener)
	assert.Contains(t, Backends(), "stub-test")

	assert.Panics(t, func() {
		Register("stub-test", func(*zap.Logger) port.SourceOpener { return stubOpener{} })
	})
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("does-not-exist", zap.NewNop())
	assert.ErrorContains(t, err, "unknown frame decoder")
}
