package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracerProviderWithoutExporter(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracerProvider(ctx, Config{ServiceName: "tuoitre-crawler", Version: "test", SampleRatio: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "probe")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	carrier := propagation.MapCarrier{}
	spanCtx, span := otel.Tracer("test").Start(ctx, "inject")
	otel.GetTextMapPropagator().Inject(spanCtx, carrier)
	span.End()
	assert.NotEmpty(t, carrier.Get("traceparent"))
}

func TestSamplerRatios(t *testing.T) {
	t.Parallel()

	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
