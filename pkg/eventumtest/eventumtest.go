// Package eventumtest 提供端到端测试用的服务器与 WebSocket 客户端
package eventumtest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/eventum"
)

// DefaultTimeout 读写与关机的默认超时
const DefaultTimeout = 5 * time.Second

// Server 运行在随机端口上的真实服务器
type Server struct {
	t      testing.TB
	srv    *eventum.Server
	addr   string
	done   chan error
	closed bool
}

// NewServer 执行启动回调并在 127.0.0.1 随机端口上运行 app，测试结束时自动关闭
func NewServer(t testing.TB, app *eventum.App) *Server {
	t.Helper()

	srv, err := app.NewServer()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	require.NoError(t, srv.Startup(ctx))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{
		t:    t,
		srv:  srv,
		addr: ln.Addr().String(),
		done: make(chan error, 1),
	}
	go func() {
		s.done <- srv.Serve(ln)
	}()

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("eventumtest: close server: %v", err)
		}
	})
	return s
}

// Addr 监听地址
func (s *Server) Addr() string { return s.addr }

// URL 返回 ws:// 地址
func (s *Server) URL(path string) string { return "ws://" + s.addr + path }

// HTTPURL 返回 http:// 地址
func (s *Server) HTTPURL(path string) string { return "http://" + s.addr + path }

// Close 关闭服务器并执行关闭回调，重复调用返回 nil
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	select {
	case serveErr := <-s.done:
		return errors.Join(err, serveErr)
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

// DialOption 连接选项
type DialOption func(*dialOptions)

type dialOptions struct {
	header       http.Header
	subprotocols []string
}

// WithHeader 附加请求头
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) {
		o.header.Add(key, value)
	}
}

// WithSubprotocols 声明子协议（按优先级）
func WithSubprotocols(protocols ...string) DialOption {
	return func(o *dialOptions) {
		o.subprotocols = protocols
	}
}

// Dial 发起 WebSocket 握手
//
// 握手被拒绝时返回 websocket.ErrBadHandshake 与服务器的 HTTP 响应。
func (s *Server) Dial(path string, opts ...DialOption) (*Conn, *http.Response, error) {
	o := &dialOptions{header: http.Header{}}
	for _, opt := range opts {
		opt(o)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
		Subprotocols:     o.subprotocols,
	}
	ws, resp, err := dialer.Dial(s.URL(path), o.header)
	if err != nil {
		return nil, resp, err
	}
	c := &Conn{Conn: ws, t: s.t}
	s.t.Cleanup(func() { _ = ws.Close() })
	return c, resp, nil
}

// Connect 握手必须成功
func (s *Server) Connect(path string, opts ...DialOption) *Conn {
	s.t.Helper()
	c, _, err := s.Dial(path, opts...)
	require.NoError(s.t, err)
	return c
}

// Conn 测试客户端连接
type Conn struct {
	*websocket.Conn
	t testing.TB
}

// SendText 发送文本帧
func (c *Conn) SendText(text string) {
	c.t.Helper()
	require.NoError(c.t, c.SetWriteDeadline(time.Now().Add(DefaultTimeout)))
	require.NoError(c.t, c.WriteMessage(websocket.TextMessage, []byte(text)))
}

// SendEvent 发送 {"event": name, ...fields}
func (c *Conn) SendEvent(name string, fields map[string]any) {
	c.t.Helper()
	msg := map[string]any{"event": name}
	for k, v := range fields {
		msg[k] = v
	}
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	c.SendText(string(data))
}

// ReadText 读取一帧文本
func (c *Conn) ReadText() string {
	c.t.Helper()
	require.NoError(c.t, c.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	mt, data, err := c.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.TextMessage, mt)
	return string(data)
}

// ReadJSON 读取一帧并解码
func (c *Conn) ReadJSON(v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal([]byte(c.ReadText()), v))
}

// ExpectClose 读取直到连接关闭，返回服务器的关闭码
func (c *Conn) ExpectClose() int {
	c.t.Helper()
	require.NoError(c.t, c.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	for {
		_, _, err := c.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(c.t, err, &ce)
		return ce.Code
	}
}

// CloseWith 发送关闭帧
func (c *Conn) CloseWith(code int, reason string) {
	c.t.Helper()
	msg := websocket.FormatCloseMessage(code, reason)
	require.NoError(c.t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(DefaultTimeout)))
}
