package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, SessionID(ctx))
	assert.Empty(t, StepID(ctx))
	assert.Empty(t, Target(ctx))

	ctx = WithSessionID(ctx, "s-1")
	ctx = WithStepID(ctx, "os.detect")
	ctx = WithTarget(ctx, "root@10.0.0.1:22")

	assert.Equal(t, "s-1", SessionID(ctx))
	assert.Equal(t, "os.detect", StepID(ctx))
	assert.Equal(t, "root@10.0.0.1:22", Target(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithTarget(WithSessionID(context.Background(), "s-42"), "ops@web-1:22")
	logger.InfoContext(ctx, "step started")

	out := buf.String()
	assert.Contains(t, out, "session_id=s-42")
	assert.Contains(t, out, "target=ops@web-1:22")
	assert.NotContains(t, out, "step_id")
}
