package telemetry_test

import (
	"context"
	"testing"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func rootDecision(t *testing.T, ratio float64) sdktrace.SamplingDecision {
	t.Helper()
	res := telemetry.Sampler(ratio).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "GET /health",
	})
	return res.Decision
}

func TestSampler_Clamps(t *testing.T) {
	assert.Equal(t, sdktrace.RecordAndSample, rootDecision(t, 1))
	assert.Equal(t, sdktrace.RecordAndSample, rootDecision(t, 5))
	assert.Equal(t, sdktrace.Drop, rootDecision(t, 0))
	assert.Equal(t, sdktrace.Drop, rootDecision(t, -1))
}

func TestSampler_HonorsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)
	res := telemetry.Sampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "POST /api/v1/projects/{name}/question",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestInit_DisabledStillPropagates(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())

	shutdown, err := telemetry.Init(context.Background(), config.TelemetryConfig{Enabled: false, OTLPEndpoint: "localhost:4317"}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
