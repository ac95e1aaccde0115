package tracing

import (
	"io"
	"time"

	"github.com/tokmz/eventum"
)

// 导出器类型
const (
	ExporterOTLP     = "otlp"      // OTLP over HTTP
	ExporterOTLPGRPC = "otlp-grpc" // OTLP over gRPC
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// Config 链路追踪配置
type Config struct {
	ServiceName    string // 服务名称（必填）
	ServiceVersion string // 服务版本
	Environment    string // 环境（dev/staging/prod）

	ExporterType     string            // 导出器类型（otlp/otlp-grpc/stdout/noop）
	ExporterEndpoint string            // 导出器端点（如 OTLP Collector 地址）
	ExporterHeaders  map[string]string // 导出器请求头（用于认证）
	Insecure         bool              // 是否使用非 TLS 连接
	Writer           io.Writer         // stdout 导出器的输出，nil 时为标准输出

	SamplingRate  float64  // 采样率（0.0-1.0）
	SamplingType  string   // 采样类型（always/never/ratio/parent_based）
	IgnoredEvents []string // 不采样的事件名（如高频心跳 ping）

	Enabled            bool              // 是否启用
	ResourceAttributes map[string]string // 资源属性（自定义标签）

	// 批处理配置
	BatchTimeout       time.Duration
	MaxExportBatchSize int
	MaxQueueSize       int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ServiceName:        "eventum",
		ServiceVersion:     eventum.Version,
		Environment:        "development",
		ExporterType:       ExporterStdout,
		SamplingRate:       1.0,
		SamplingType:       "parent_based",
		Enabled:            true,
		ResourceAttributes: make(map[string]string),
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrInvalidConfig("service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return ErrInvalidConfig("sampling rate must be between 0.0 and 1.0")
	}

	switch c.ExporterType {
	case ExporterOTLP, ExporterOTLPGRPC, ExporterStdout, ExporterNoop:
	default:
		return ErrInvalidConfig("invalid exporter type: " + c.ExporterType)
	}
	return nil
}

// ConfigError 配置错误
type ConfigError struct {
	message string
}

func (e *ConfigError) Error() string {
	return "tracing config error: " + e.message
}

// ErrInvalidConfig 创建配置错误
func ErrInvalidConfig(message string) error {
	return &ConfigError{message: message}
}
