package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerNeverSamples(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "span")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestTracerProviderBadAddress(t *testing.T) {
	_, err := tracerProvider("no-port")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host:port")
}
