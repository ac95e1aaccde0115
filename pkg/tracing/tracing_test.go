package tracing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tokmz/eventum"
	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"rate too high", func(c *Config) { c.SamplingRate = 1.5 }, true},
		{"rate negative", func(c *Config) { c.SamplingRate = -0.1 }, true},
		{"unknown exporter", func(c *Config) { c.ExporterType = "zipkin" }, true},
		{"otlp grpc", func(c *Config) { c.ExporterType = ExporterOTLPGRPC }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		samplingType string
		contains     string
	}{
		{"always", "AlwaysOnSampler"},
		{"never", "AlwaysOffSampler"},
		{"ratio", "TraceIDRatioBased"},
		{"parent_based", "ParentBased"},
	}
	for _, tt := range tests {
		t.Run(tt.samplingType, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SamplingType = tt.samplingType
			cfg.SamplingRate = 0.5
			assert.Contains(t, newSampler(cfg).Description(), tt.contains)
		})
	}
}

func TestEventSamplerDropsIgnoredEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SamplingType = "always"
	cfg.IgnoredEvents = []string{"ping", "heartbeat"}
	sampler := newSampler(cfg)
	assert.Equal(t, "EventFilter{heartbeat,ping}/AlwaysOnSampler", sampler.Description())

	decide := func(attrs ...attribute.KeyValue) sdktrace.SamplingDecision {
		return sampler.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			Name:          "eventum.event",
			Attributes:    attrs,
		}).Decision
	}
	assert.Equal(t, sdktrace.Drop, decide(EventKey.String("ping")))
	assert.Equal(t, sdktrace.RecordAndSample, decide(EventKey.String("echo")))
	assert.Equal(t, sdktrace.RecordAndSample, decide(ConnectionIDKey.String("c1")))

	cfg.IgnoredEvents = nil
	assert.Equal(t, "AlwaysOnSampler", newSampler(cfg).Description())
}

func TestNewSamplerFromEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER", "always_off")
	cfg := DefaultConfig()
	cfg.SamplingType = "always"
	assert.Equal(t, "AlwaysOffSampler", newSampler(cfg).Description())

	t.Setenv("OTEL_TRACES_SAMPLER", "traceidratio")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	assert.Contains(t, newSampler(cfg).Description(), "0.25")

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "bogus")
	assert.InDelta(t, 1.0, envSamplingRatio(), 0)
}

func TestNewTracerProviderStdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	cfg.SamplingType = "always"

	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, tp, GetTracerProvider())

	_, span := StartSpan(ctx, nil, "unit")
	SetAttributes(span, map[string]any{"room": "lobby", "n": 2})
	span.End()

	require.NoError(t, Shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name": "unit"`)
	assert.Contains(t, buf.String(), "lobby")
	assert.Contains(t, buf.String(), "eventum.version")
}

func TestNewTracerProviderDisabledUsesNoop(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.Writer = &buf

	tp, err := NewTracerProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestNewTracerProviderInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExporterType = "zipkin"
	_, err := NewTracerProvider(context.Background(), cfg)
	assert.Error(t, err)
}

func TestConvertToAttribute(t *testing.T) {
	assert.Equal(t, attribute.String("k", "v"), convertToAttribute("k", "v"))
	assert.Equal(t, attribute.Int("k", 1), convertToAttribute("k", 1))
	assert.Equal(t, attribute.Int64("k", 2), convertToAttribute("k", int64(2)))
	assert.Equal(t, attribute.Float64("k", 1.5), convertToAttribute("k", 1.5))
	assert.Equal(t, attribute.Bool("k", true), convertToAttribute("k", true))
	assert.Equal(t, attribute.StringSlice("k", []string{"a"}), convertToAttribute("k", []string{"a"}))
	assert.Equal(t, attribute.String("k", "[1 2]"), convertToAttribute("k", []int{1, 2}))
}

// withRecorder 安装记录用的全局 provider 与 W3C propagator
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return recorder
}

func newConnection(headers http.Header) (*eventum.Connection, *gateway.MemoryTransport) {
	tr := gateway.NewMemoryTransport(1)
	scope := gateway.Scope{
		Type:       gateway.ScopeWebSocket,
		Path:       "/ws",
		Headers:    headers,
		RemoteAddr: "10.0.0.1:1234",
	}
	return eventum.NewConnection(scope, tr, logger.NewNop()), tr
}

func TestMiddlewareAcceptedSpan(t *testing.T) {
	recorder := withRecorder(t)

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	conn, _ := newConnection(http.Header{
		"Traceparent": {traceparent},
		"User-Agent":  {"test-client"},
	})

	h := Middleware().Wrap(func(ctx context.Context, conn *eventum.Connection) error {
		return conn.Accept(ctx)
	})
	require.NoError(t, h(context.Background(), conn))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "WS /ws", span.Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "/ws", attrs["url.path"].AsString())
	assert.Equal(t, "test-client", attrs["user_agent.original"].AsString())
	assert.Equal(t, conn.ID(), attrs["eventum.connection_id"].AsString())
	assert.True(t, attrs["eventum.accepted"].AsBool())
	assert.False(t, attrs["eventum.denied"].AsBool())
}

func TestMiddlewareRecordsError(t *testing.T) {
	recorder := withRecorder(t)
	conn, _ := newConnection(nil)

	boom := errors.New("boom")
	h := Middleware().Wrap(func(ctx context.Context, conn *eventum.Connection) error {
		return boom
	})
	assert.ErrorIs(t, h(context.Background(), conn), boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestMiddlewareFilter(t *testing.T) {
	recorder := withRecorder(t)
	conn, _ := newConnection(nil)

	called := false
	h := Middleware(
		WithTracerName("custom"),
		WithFilter(func(*eventum.Connection) bool { return false }),
	).Wrap(func(ctx context.Context, conn *eventum.Connection) error {
		called = true
		return nil
	})
	require.NoError(t, h(context.Background(), conn))
	assert.True(t, called)
	assert.Empty(t, recorder.Ended())
}

func TestStartSpanCarriesConnectionID(t *testing.T) {
	recorder := withRecorder(t)
	conn, _ := newConnection(nil)

	_, span := StartSpan(context.Background(), conn, "room.broadcast")
	SetAttributes(span, map[string]any{"room": "lobby", "members": 3})
	SetAttributes(span, nil)
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "room.broadcast", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, conn.ID(), attrs["eventum.connection_id"].AsString())
	assert.Equal(t, "lobby", attrs["room"].AsString())
	assert.Equal(t, int64(3), attrs["members"].AsInt64())
}
