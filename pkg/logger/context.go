package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	connectionIDKey contextKey = "connection_id"
	loggerKey       contextKey = "logger"
)

// WithConnectionID 在 Context 中记录连接 ID
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionID 读取 Context 中的连接 ID
func ConnectionID(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey).(string)
	return id
}

// IntoContext 把 Logger 存入 Context
func IntoContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext 取出 Context 中的 Logger，不存在时返回 fallback
func FromContext(ctx context.Context, fallback Logger) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return fallback
}

// contextFields 从 context.Context 提取 trace_id、span_id、connection_id
func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+3)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := ConnectionID(ctx); id != "" {
		out = append(out, zap.String("connection_id", id))
	}

	return append(out, fields...)
}
