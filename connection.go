package eventum

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

// SubprotocolSelector 从客户端提供的子协议中选出一个
type SubprotocolSelector func(offered []string) string

// FirstSubprotocol 默认选择第一个子协议
func FirstSubprotocol(offered []string) string {
	return offered[0]
}

// Connection 一次 WebSocket 会话
//
// 路径、子协议与请求头在创建时固定；flags 是处理器之间共享的可变状态。
type Connection struct {
	id        string
	scope     gateway.Scope
	transport gateway.Transport
	logger    logger.Logger

	mu       sync.RWMutex
	flags    map[any]any
	accepted bool
	denied   bool
}

// NewConnection 基于网关会话创建连接
func NewConnection(scope gateway.Scope, t gateway.Transport, l logger.Logger) *Connection {
	if l == nil {
		l = logger.NewNop()
	}
	headers := scope.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	scope.Headers = headers
	scope.Subprotocols = slices.Clone(scope.Subprotocols)

	id := uuid.NewString()
	return &Connection{
		id:        id,
		scope:     scope,
		transport: t,
		logger:    l.With(zap.String("connection_id", id), zap.String("path", scope.Path)),
		flags:     make(map[any]any),
	}
}

// ID 连接唯一标识
func (c *Connection) ID() string { return c.id }

// Path 握手路径
func (c *Connection) Path() string { return c.scope.Path }

// RemoteAddr 客户端地址
func (c *Connection) RemoteAddr() string { return c.scope.RemoteAddr }

// Logger 带 connection_id 字段的 Logger
func (c *Connection) Logger() logger.Logger { return c.logger }

// Subprotocols 客户端提供的子协议（副本）
func (c *Connection) Subprotocols() []string {
	return slices.Clone(c.scope.Subprotocols)
}

// Headers 请求头（副本）
func (c *Connection) Headers() http.Header {
	return c.scope.Headers.Clone()
}

// Header 读取请求头，名称大小写不敏感
func (c *Connection) Header(name string) string {
	return c.scope.Headers.Get(name)
}

// HasHeader 请求头是否存在，名称大小写不敏感
func (c *Connection) HasHeader(name string) bool {
	name = strings.ToLower(name)
	for k := range c.scope.Headers {
		if strings.ToLower(k) == name {
			return true
		}
	}
	return false
}

// Accepted 是否已接受握手
func (c *Connection) Accepted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accepted
}

// acceptConfig Accept 选项
type acceptConfig struct {
	headers  http.Header
	selector SubprotocolSelector
}

// AcceptOption Accept 选项
type AcceptOption func(*acceptConfig)

// WithAcceptHeaders 附加握手响应头
func WithAcceptHeaders(h http.Header) AcceptOption {
	return func(c *acceptConfig) {
		c.headers = h
	}
}

// WithSubprotocolSelector 自定义子协议选择
func WithSubprotocolSelector(fn SubprotocolSelector) AcceptOption {
	return func(c *acceptConfig) {
		c.selector = fn
	}
}

// Accept 接受握手
//
// 客户端提供了子协议时选出一个（默认第一个）并通过 Sec-WebSocket-Protocol 回传。
func (c *Connection) Accept(ctx context.Context, opts ...AcceptOption) error {
	cfg := &acceptConfig{selector: FirstSubprotocol}
	for _, opt := range opts {
		opt(cfg)
	}

	var subprotocol string
	if len(c.scope.Subprotocols) > 0 && cfg.selector != nil {
		subprotocol = cfg.selector(c.Subprotocols())
	}

	if err := c.transport.Send(ctx, gateway.Accept(subprotocol, cfg.headers)); err != nil {
		return err
	}

	c.mu.Lock()
	c.accepted = true
	c.mu.Unlock()
	return nil
}

// SendText 发送文本帧
func (c *Connection) SendText(ctx context.Context, text string) error {
	return c.transport.Send(ctx, gateway.SendText(text))
}

// SendBytes 发送二进制帧
func (c *Connection) SendBytes(ctx context.Context, b []byte) error {
	if b == nil {
		b = []byte{}
	}
	return c.transport.Send(ctx, gateway.SendBytes(b))
}

// SendEvent 将事件序列化为 JSON 文本帧发送
func (c *Connection) SendEvent(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.SendText(ctx, string(data))
}

// Receive 接收一帧数据
//
// 文本帧优先于二进制帧；空帧返回 nil 数据；对端断开返回 *DisconnectedError。
func (c *Connection) Receive(ctx context.Context) ([]byte, error) {
	msg, err := c.receive(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case msg.IsEmpty():
		return nil, nil
	case msg.Text != "":
		return []byte(msg.Text), nil
	default:
		return msg.Bytes, nil
	}
}

// ReceiveText 接收一帧文本
func (c *Connection) ReceiveText(ctx context.Context) (string, error) {
	msg, err := c.receive(ctx)
	if err != nil {
		return "", err
	}
	return msg.Text, nil
}

// ReceiveBytes 接收一帧二进制
func (c *Connection) ReceiveBytes(ctx context.Context) ([]byte, error) {
	msg, err := c.receive(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Bytes, nil
}

func (c *Connection) receive(ctx context.Context) (gateway.Message, error) {
	msg, err := c.transport.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// 服务关闭等 ctx 结束按断开处理
			return gateway.Message{}, &DisconnectedError{ConnectionID: c.id, Code: gateway.CloseGoingAway}
		}
		return gateway.Message{}, err
	}
	if msg.Type == gateway.TypeDisconnect {
		return gateway.Message{}, &DisconnectedError{ConnectionID: c.id, Code: msg.Code}
	}
	return msg, nil
}

// Close 关闭连接，code 为 0 时使用 1000
func (c *Connection) Close(ctx context.Context, code int, reason string) error {
	if code == 0 {
		code = gateway.CloseNormal
	}
	return c.transport.Send(ctx, gateway.Close(code, reason))
}

// SendHTTPResponse 在握手前以 HTTP 响应拒绝连接
func (c *Connection) SendHTTPResponse(ctx context.Context, resp *HTTPResponse) error {
	if err := c.transport.Send(ctx, gateway.Message{
		Type:    gateway.TypeHTTPResponseStart,
		Status:  resp.Status,
		Headers: resp.Headers,
	}); err != nil {
		return err
	}
	if err := c.transport.Send(ctx, gateway.Message{
		Type: gateway.TypeHTTPResponseBody,
		Body: resp.Body,
	}); err != nil {
		return err
	}

	c.mu.Lock()
	c.denied = true
	c.mu.Unlock()
	return nil
}

// Denied 是否已通过 HTTP 响应拒绝
func (c *Connection) Denied() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.denied
}
