package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, samplerFor(tt.ratio).Description(), tt.want, "ratio %v", tt.ratio)
	}
}

func TestNewExporter_Unknown(t *testing.T) {
	_, err := newExporter(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
}

func TestInitTracing(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, TracingConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	shutdown, err = InitTracing(ctx, TracingConfig{ServiceName: "test", Enabled: true, Exporter: "stdout", SamplerRatio: 0})
	require.NoError(t, err)
	span, _ := NewSpan(ctx, "unsampled")
	span.End(errors.New("boom"))
	assert.NoError(t, shutdown(ctx))

	_, err = InitTracing(ctx, TracingConfig{ServiceName: "test", Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}
