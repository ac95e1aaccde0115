package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/tokmz/eventum"
)

var (
	globalProvider *trace.TracerProvider
	providerMu     sync.Mutex
)

// NewTracerProvider 创建 TracerProvider 并设为全局
func NewTracerProvider(ctx context.Context, cfg *Config) (*trace.TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		cfg.ExporterType = ExporterNoop
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := newSampler(cfg)

	batchProcessor := trace.NewBatchSpanProcessor(
		exporter,
		trace.WithBatchTimeout(cfg.BatchTimeout),
		trace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		trace.WithMaxQueueSize(cfg.MaxQueueSize),
	)

	tp := trace.NewTracerProvider(
		trace.WithSampler(sampler),
		trace.WithSpanProcessor(batchProcessor),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	// W3C Trace Context + Baggage，握手时从请求头提取
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providerMu.Lock()
	globalProvider = tp
	providerMu.Unlock()

	return tp, nil
}

// newResource 创建资源（包含服务信息和自定义属性）
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			attribute.String("eventum.version", eventum.Version),
		),
	}

	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		))
	}

	if len(cfg.ResourceAttributes) > 0 {
		customAttrs := make([]attribute.KeyValue, 0, len(cfg.ResourceAttributes))
		for k, v := range cfg.ResourceAttributes {
			customAttrs = append(customAttrs, attribute.String(k, v))
		}
		attrs = append(attrs, resource.WithAttributes(customAttrs...))
	}

	// OTEL_RESOURCE_ATTRIBUTES 由 WithFromEnv 读取
	attrs = append(attrs, resource.WithFromEnv(), resource.WithTelemetrySDK())

	return resource.New(ctx, attrs...)
}

// Shutdown 优雅关闭 TracerProvider
// 确保所有 Span 导出完成
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := globalProvider
	providerMu.Unlock()

	if tp == nil {
		return nil
	}

	return tp.Shutdown(ctx)
}

// GetTracerProvider 获取全局 TracerProvider
func GetTracerProvider() *trace.TracerProvider {
	providerMu.Lock()
	defer providerMu.Unlock()
	return globalProvider
}
