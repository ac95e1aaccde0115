package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/eventum"
)

const handlerTracerName = "eventum.handler"

// 事件循环与握手 Span 使用的属性键
const (
	EventKey        = attribute.Key("eventum.event")
	ConnectionIDKey = attribute.Key("eventum.connection_id")
)

// StartSpan 在事件处理器内开启子 Span，自动携带连接 ID
func StartSpan(ctx context.Context, conn *eventum.Connection, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if conn != nil {
		opts = append(opts, trace.WithAttributes(ConnectionIDKey.String(conn.ID())))
	}
	return otel.Tracer(handlerTracerName).Start(ctx, name, opts...)
}

// RecordError 记录错误并标记 Span 失败，err 为 nil 时忽略
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes 以 map 形式批量设置属性，常用于记录事件字段
func SetAttributes(span trace.Span, attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, convertToAttribute(k, v))
	}
	span.SetAttributes(kvs...)
}

func convertToAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		// JSON 数字解码为 float64
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
