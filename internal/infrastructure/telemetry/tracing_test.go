package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan_EndSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	t.Run("success sets ok status", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "purchase", "initiate", attribute.String("service_id", "home-loan"))
		EndSpan(span, nil)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		last := spans[len(spans)-1]
		assert.Equal(t, "purchase.initiate", last.Name())
		assert.Equal(t, codes.Ok, last.Status().Code)
		assert.Contains(t, last.Attributes(), attribute.String("service_id", "home-loan"))
	})

	t.Run("error is recorded", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "lead", "submit")
		EndSpan(span, errors.New("boom"))

		spans := recorder.Ended()
		last := spans[len(spans)-1]
		assert.Equal(t, codes.Error, last.Status().Code)
		assert.Equal(t, "boom", last.Status().Description)
		require.Len(t, last.Events(), 1)
		assert.Equal(t, "exception", last.Events()[0].Name)
	})
}

func TestAddEvent(t *testing.T) {
	recorder := withSpanRecorder(t)

	ctx, span := StartSpan(context.Background(), "referral", "record")
	AddEvent(ctx, "conversion", "affiliate_id", "aff-1", "dangling")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "conversion", events[0].Name)
	assert.Equal(t, []attribute.KeyValue{attribute.String("affiliate_id", "aff-1")}, events[0].Attributes)

	// no recording span: no panic
	AddEvent(context.Background(), "ignored")
}

type stringer struct{}

func (stringer) String() string { return "stringer" }

func TestAttr(t *testing.T) {
	assert.Equal(t, attribute.String("k", "v"), Attr("k", "v"))
	assert.Equal(t, attribute.Int("k", 3), Attr("k", 3))
	assert.Equal(t, attribute.Int64("k", 3), Attr("k", int64(3)))
	assert.Equal(t, attribute.Bool("k", true), Attr("k", true))
	assert.Equal(t, attribute.Float64("k", 1.5), Attr("k", 1.5))
	assert.Equal(t, attribute.String("k", "stringer"), Attr("k", stringer{}))
	assert.Equal(t, attribute.String("k", "[1 2]"), Attr("k", []int{1, 2}))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	tp.EnableSpanProfiles()
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}
