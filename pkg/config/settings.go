package config

import (
	"time"

	"github.com/tokmz/eventum"
	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
	"github.com/tokmz/eventum/pkg/tracing"
)

// Settings 配置文件结构
type Settings struct {
	Mode      string            `mapstructure:"mode"`
	Server    ServerSettings    `mapstructure:"server"`
	WebSocket WebSocketSettings `mapstructure:"websocket"`
	Log       LogSettings       `mapstructure:"log"`
	Tracing   TracingSettings   `mapstructure:"tracing"`
}

// ServerSettings 服务器配置
type ServerSettings struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	HealthPath        string        `mapstructure:"health_path"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// WebSocketSettings 网关配置
type WebSocketSettings struct {
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"` // ["*"] 允许所有来源
}

// LogSettings 日志配置
type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Console    bool   `mapstructure:"console"`
	File       string `mapstructure:"file"` // 非空时按大小轮转
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// TracingSettings 链路追踪配置
type TracingSettings struct {
	Enabled        bool              `mapstructure:"enabled"`
	ServiceName    string            `mapstructure:"service_name"`
	ServiceVersion string            `mapstructure:"service_version"`
	Environment    string            `mapstructure:"environment"`
	Exporter       string            `mapstructure:"exporter"`
	Endpoint       string            `mapstructure:"endpoint"`
	Headers        map[string]string `mapstructure:"headers"`
	Insecure       bool              `mapstructure:"insecure"`
	SamplingType   string            `mapstructure:"sampling_type"`
	SamplingRate   float64           `mapstructure:"sampling_rate"`
	IgnoredEvents  []string          `mapstructure:"ignored_events"`
}

// defaultValues 内置默认值，同时让环境变量覆盖对所有键生效
func defaultValues() map[string]any {
	return map[string]any{
		"mode": "release",

		"server.addr":                ":7777",
		"server.read_header_timeout": "10s",
		"server.idle_timeout":        "60s",
		"server.shutdown_timeout":    "10s",
		"server.health_path":         "",
		"server.trusted_proxies":     []string{},
		"server.poll_interval":       "0s",

		"websocket.read_buffer_size":   1024,
		"websocket.write_buffer_size":  1024,
		"websocket.handshake_timeout":  "10s",
		"websocket.write_timeout":      "10s",
		"websocket.max_message_size":   512 * 1024,
		"websocket.enable_compression": false,
		"websocket.allowed_origins":    []string{},

		"log.level":       "info",
		"log.format":      "json",
		"log.console":     true,
		"log.file":        "",
		"log.max_size":    100,
		"log.max_age":     30,
		"log.max_backups": 10,
		"log.compress":    false,

		"tracing.enabled":         false,
		"tracing.service_name":    "eventum",
		"tracing.service_version": eventum.Version,
		"tracing.environment":     "development",
		"tracing.exporter":        tracing.ExporterStdout,
		"tracing.endpoint":        "",
		"tracing.insecure":        false,
		"tracing.sampling_type":   "parent_based",
		"tracing.sampling_rate":   1.0,
		"tracing.ignored_events":  []string{},
	}
}

// Options 转换为应用选项（不含 Logger 与 TracerProvider，由调用方创建后追加）
func (s *Settings) Options() []eventum.Option {
	opts := []eventum.Option{
		eventum.WithAddr(s.Server.Addr),
		eventum.WithReadHeaderTimeout(s.Server.ReadHeaderTimeout),
		eventum.WithIdleTimeout(s.Server.IdleTimeout),
		eventum.WithShutdownTimeout(s.Server.ShutdownTimeout),
		eventum.WithHealthPath(s.Server.HealthPath),
		eventum.WithPollInterval(s.Server.PollInterval),
		eventum.WithGatewayOptions(s.GatewayOptions()...),
	}
	if s.Mode != "" {
		opts = append(opts, eventum.WithMode(s.Mode))
	}
	if len(s.Server.TrustedProxies) > 0 {
		opts = append(opts, eventum.WithTrustedProxies(s.Server.TrustedProxies...))
	}
	return opts
}

// GatewayOptions 转换为网关选项
func (s *Settings) GatewayOptions() []gateway.Option {
	ws := s.WebSocket
	opts := []gateway.Option{
		gateway.WithBufferSize(ws.ReadBufferSize, ws.WriteBufferSize),
		gateway.WithHandshakeTimeout(ws.HandshakeTimeout),
		gateway.WithWriteTimeout(ws.WriteTimeout),
		gateway.WithMessageSizeLimit(ws.MaxMessageSize),
		gateway.WithEnableCompression(ws.EnableCompression),
	}

	switch {
	case len(ws.AllowedOrigins) == 1 && ws.AllowedOrigins[0] == "*":
		opts = append(opts, gateway.WithAllowAllOrigins())
	case len(ws.AllowedOrigins) > 0:
		opts = append(opts, gateway.WithCheckOriginWhitelist(ws.AllowedOrigins))
	}
	return opts
}

// LoggerConfig 转换为日志配置
func (s *Settings) LoggerConfig() (*logger.Config, error) {
	level, err := logger.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(s.Log.Format)
	if err != nil {
		return nil, err
	}

	cfg := &logger.Config{
		Level:   level,
		Format:  format,
		Console: s.Log.Console,
	}
	if s.Tracing.ServiceName != "" {
		cfg.Fields = map[string]string{"service": s.Tracing.ServiceName}
	}
	if s.Log.File != "" {
		cfg.Rotate = &logger.RotateConfig{
			Filename:   s.Log.File,
			MaxSize:    s.Log.MaxSize,
			MaxAge:     s.Log.MaxAge,
			MaxBackups: s.Log.MaxBackups,
			Compress:   s.Log.Compress,
		}
	}
	return cfg, nil
}

// TracingConfig 转换为链路追踪配置
func (s *Settings) TracingConfig() *tracing.Config {
	t := s.Tracing
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	cfg.ServiceName = t.ServiceName
	cfg.ServiceVersion = t.ServiceVersion
	cfg.Environment = t.Environment
	cfg.ExporterType = t.Exporter
	cfg.ExporterEndpoint = t.Endpoint
	cfg.ExporterHeaders = t.Headers
	cfg.Insecure = t.Insecure
	cfg.SamplingType = t.SamplingType
	cfg.SamplingRate = t.SamplingRate
	cfg.IgnoredEvents = t.IgnoredEvents
	return cfg
}
