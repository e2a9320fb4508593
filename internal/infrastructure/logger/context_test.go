package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextWithValidSpan() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x0a, 0x0b},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestWithContext(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	l.Info("hello")
	assert.Equal(t, "req-1", recorded.All()[0].ContextMap()["request_id"])
	assert.Same(t, l, FromContext(ctx))
}

func TestContextIDs_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetAffiliateID(ctx))
	assert.Empty(t, GetAdminID(ctx))
	assert.Empty(t, GetTraceID(ctx))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span returns same logger", func(t *testing.T) {
		base := zap.NewNop()
		assert.Same(t, base, WithTraceContext(context.Background(), base))
	})

	t.Run("valid span adds ids", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		ctx := contextWithValidSpan()

		WithTraceContext(ctx, zap.New(core)).Info("traced")

		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, GetTraceID(ctx), fields["trace_id"])
		assert.NotEmpty(t, fields["span_id"])
	})
}

func TestL(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(contextWithValidSpan(), zap.New(core))
	ctx = WithAffiliateID(ctx, "AFF_1")
	ctx = WithAdminID(ctx, "admin-7")

	L(ctx).Info("enriched")

	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "AFF_1", fields["affiliate_id"])
	assert.Equal(t, "admin-7", fields["admin_id"])
	assert.Contains(t, fields, "trace_id")
}

func TestL_EmptyContext(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Info("nop")
	})
}
