package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextHandler(t *testing.T) {
	t.Run("AddsTraceIDs", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(newTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		}))

		log.InfoContext(ctx, "hello")

		assert.Contains(t, buf.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
		assert.Contains(t, buf.String(), `"span_id":"00f067aa0ba902b7"`)
	})

	t.Run("NoSpan", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(newTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

		log.InfoContext(context.Background(), "hello")

		assert.NotContains(t, buf.String(), "trace_id")
	})
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newColorTextHandler(&buf, nil))

	log.Error("boom", "key", "value")
	log.Info("fine")

	out := buf.String()
	assert.Contains(t, out, "[31mboom")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "msg=fine")
}
