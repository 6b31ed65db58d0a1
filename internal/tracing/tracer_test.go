package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerProvider_Disabled(t *testing.T) {
	shutdown, err := InitTracerProvider("crop-notifier", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}

func TestInitTracerProvider_Jaeger(t *testing.T) {
	shutdown, err := InitTracerProvider("crop-notifier", "http://127.0.0.1:1/api/traces")
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "job")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	_ = shutdown(context.Background())
}
