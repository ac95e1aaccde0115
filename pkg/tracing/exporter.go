package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// newExporter 根据配置创建导出器
func newExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterOTLP:
		return newOTLPHTTPExporter(ctx, cfg)
	case ExporterOTLPGRPC:
		return newOTLPGRPCExporter(ctx, cfg)
	case ExporterStdout:
		return newStdoutExporter(cfg)
	case ExporterNoop:
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// endpoint 配置优先，环境变量次之
func endpoint(cfg *Config) string {
	if cfg.ExporterEndpoint != "" {
		return cfg.ExporterEndpoint
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func newOTLPHTTPExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if ep := endpoint(cfg); ep != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.ExporterHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.ExporterHeaders))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newOTLPGRPCExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	var opts []otlptracegrpc.Option
	if ep := endpoint(cfg); ep != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.ExporterHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.ExporterHeaders))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// newStdoutExporter 标准输出导出器（用于开发调试）
func newStdoutExporter(cfg *Config) (trace.SpanExporter, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	return stdouttrace.New(opts...)
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                          { return nil }
