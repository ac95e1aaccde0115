package eventum

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	// Addr 监听地址，默认 ":7777"
	Addr string

	// ReadHeaderTimeout 读取请求头超时
	ReadHeaderTimeout time.Duration

	// IdleTimeout 空闲超时
	IdleTimeout time.Duration

	// MaxHeaderBytes 最大请求头字节数
	MaxHeaderBytes int

	// HealthPath 健康检查路径，空则不注册
	HealthPath string
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	// Timeout 关机超时时间，默认 10 秒
	Timeout time.Duration

	// BeforeShutdown 关机前回调
	BeforeShutdown func()

	// AfterShutdown 关机后回调
	AfterShutdown func()
}

// Config 应用配置
type Config struct {
	// Mode gin 运行模式：debug, release, test
	Mode string

	Server   ServerConfig
	Shutdown ShutdownConfig

	// TrustedProxies 信任的代理 IP
	TrustedProxies []string

	// PollInterval 事件循环每次接收前的等待时间，0 表示直接阻塞接收
	PollInterval time.Duration

	// Gateway WebSocket 网关选项
	Gateway []gateway.Option

	Logger  logger.Logger
	Metrics Metrics

	// TracerProvider 事件 span 使用的 provider，为空时使用全局 provider
	TracerProvider trace.TracerProvider

	// HideBanner 不打印启动 banner
	HideBanner bool
}

// Option 配置选项函数
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Mode: gin.ReleaseMode,
		Server: ServerConfig{
			Addr:              ":7777",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		Metrics: NoopMetrics{},
	}
}

// WithMode 设置 gin 运行模式
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithReadHeaderTimeout 设置读取请求头超时
func WithReadHeaderTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.ReadHeaderTimeout = timeout
	}
}

// WithIdleTimeout 设置空闲超时
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.IdleTimeout = timeout
	}
}

// WithHealthPath 注册健康检查路径
func WithHealthPath(path string) Option {
	return func(c *Config) {
		c.Server.HealthPath = path
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调
func WithBeforeShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithTrustedProxies 设置信任的代理
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) {
		c.TrustedProxies = proxies
	}
}

// WithPollInterval 设置事件循环接收间隔
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithGatewayOptions 追加 WebSocket 网关选项
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(c *Config) {
		c.Gateway = append(c.Gateway, opts...)
	}
}

// WithLogger 设置 Logger
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics 设置监控
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracing 设置 TracerProvider
func WithTracing(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithHideBanner 不打印启动 banner
func WithHideBanner() Option {
	return func(c *Config) {
		c.HideBanner = true
	}
}
