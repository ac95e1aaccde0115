package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/eventum"
)

const tracerName = "eventum.handshake"

type middlewareConfig struct {
	tracerName string
	filter     func(*eventum.Connection) bool
}

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middlewareConfig)

// WithTracerName 设置 Tracer 名称（默认 "eventum.handshake"）
func WithTracerName(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.tracerName = name
	}
}

// WithFilter 过滤不需要追踪的连接，返回 false 表示跳过
func WithFilter(fn func(*eventum.Connection) bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.filter = fn
	}
}

// Middleware 握手链路追踪中间件
// 从握手请求头提取 TraceContext，为握手阶段创建 Server Span
func Middleware(opts ...MiddlewareOption) eventum.Middleware {
	cfg := &middlewareConfig{
		tracerName: tracerName,
		filter:     func(*eventum.Connection) bool { return true },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return eventum.MiddlewareFunc(func(ctx context.Context, conn *eventum.Connection, next eventum.HandshakeHandler) error {
		if !cfg.filter(conn) {
			return next(ctx, conn)
		}

		// 每次获取 tracer，避免 Provider 晚于中间件初始化时使用 noop
		tracer := otel.Tracer(cfg.tracerName)
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(conn.Headers()))

		ctx, span := tracer.Start(ctx, "WS "+conn.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.URLPath(conn.Path()),
				semconv.UserAgentOriginalKey.String(conn.Header("User-Agent")),
				semconv.ClientAddress(conn.RemoteAddr()),
				ConnectionIDKey.String(conn.ID()),
				attribute.StringSlice("eventum.subprotocols", conn.Subprotocols()),
			),
		)
		defer span.End()

		err := next(ctx, conn)

		span.SetAttributes(
			attribute.Bool("eventum.accepted", conn.Accepted()),
			attribute.Bool("eventum.denied", conn.Denied()),
		)
		RecordError(span, err)
		return err
	})
}
