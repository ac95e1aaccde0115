package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config 网关配置
type Config struct {
	ReadBufferSize    int           // 读缓冲区大小
	WriteBufferSize   int           // 写缓冲区大小
	HandshakeTimeout  time.Duration // 握手超时时间
	MaxMessageSize    int64         // 最大消息大小，<=0 不限制
	WriteTimeout      time.Duration // 单帧写超时，0 不限制
	EnableCompression bool          // 是否启用压缩

	CheckOrigin    func(*http.Request) bool // Origin 检查函数
	AllowedOrigins []string                 // 允许的 Origin 白名单
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   512 * 1024, // 512KB
		WriteTimeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("ReadBufferSize must be positive, got %d", c.ReadBufferSize)
	}
	if c.WriteBufferSize <= 0 {
		return fmt.Errorf("WriteBufferSize must be positive, got %d", c.WriteBufferSize)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("HandshakeTimeout must not be negative, got %v", c.HandshakeTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("WriteTimeout must not be negative, got %v", c.WriteTimeout)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithBufferSize 设置读写缓冲区大小
func WithBufferSize(read, write int) Option {
	return func(c *Config) {
		c.ReadBufferSize = read
		c.WriteBufferSize = write
	}
}

// WithHandshakeTimeout 设置握手超时
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}

// WithMessageSizeLimit 设置消息大小限制
func WithMessageSizeLimit(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithWriteTimeout 设置写超时
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = timeout
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单
// 示例：WithCheckOriginWhitelist([]string{"https://example.com"})
func WithCheckOriginWhitelist(allowedOrigins []string) Option {
	return func(c *Config) {
		c.AllowedOrigins = allowedOrigins
		c.CheckOrigin = createWhitelistChecker(allowedOrigins)
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// WithEnableCompression 启用压缩
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.EnableCompression = enable
	}
}

// defaultCheckOrigin 默认 Origin 检查
// 无 Origin 的请求来自非浏览器客户端，放行；有 Origin 时要求同源
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// createWhitelistChecker 创建白名单检查器
func createWhitelistChecker(allowedOrigins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		whitelist[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 白名单模式下拒绝空 Origin
			return false
		}
		return whitelist[origin]
	}
}

// newUpgrader 创建升级器
//
// Subprotocols 留空，由 accept 消息通过 Sec-WebSocket-Protocol 响应头决定选定的子协议。
func newUpgrader(c *Config) *websocket.Upgrader {
	checkOrigin := c.CheckOrigin
	if checkOrigin == nil {
		if len(c.AllowedOrigins) > 0 {
			checkOrigin = createWhitelistChecker(c.AllowedOrigins)
		} else {
			checkOrigin = defaultCheckOrigin
		}
	}

	return &websocket.Upgrader{
		ReadBufferSize:    c.ReadBufferSize,
		WriteBufferSize:   c.WriteBufferSize,
		HandshakeTimeout:  c.HandshakeTimeout,
		CheckOrigin:       checkOrigin,
		EnableCompression: c.EnableCompression,
	}
}
