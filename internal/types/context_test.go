package types

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bufferLogger(buf *bytes.Buffer) Logger {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(buf, nil)))
}

func TestLoggerOr(t *testing.T) {
	t.Run("prefers the request logger", func(t *testing.T) {
		var scoped, fallback bytes.Buffer
		ctx := WithLogger(context.Background(), bufferLogger(&scoped))

		LoggerOr(ctx, bufferLogger(&fallback)).Info("refresh cycle complete")

		assert.Contains(t, scoped.String(), "refresh cycle complete")
		assert.Empty(t, fallback.String())
	})

	t.Run("tags the fallback with the request ID", func(t *testing.T) {
		var fallback bytes.Buffer
		ctx := WithRequestID(context.Background(), "cron-refresh-20261019T120000")

		LoggerOr(ctx, bufferLogger(&fallback)).Info("tick")

		assert.Contains(t, fallback.String(), "request_id=cron-refresh-20261019T120000")
	})

	t.Run("bare context uses the fallback as is", func(t *testing.T) {
		var fallback bytes.Buffer
		LoggerOr(context.Background(), bufferLogger(&fallback)).Info("tick")

		assert.Contains(t, fallback.String(), "msg=tick")
		assert.NotContains(t, fallback.String(), "request_id")
	})
}
