package eventum_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/eventum"
	"github.com/tokmz/eventum/pkg/eventumtest"
	"github.com/tokmz/eventum/pkg/logger"
)

type echoRequest struct {
	Event   string `json:"event"`
	Message string `json:"message" binding:"required"`
}

// closeMetrics 在连接会话结束时通知
type closeMetrics struct {
	eventum.NoopMetrics
	closed chan struct{}
}

func (m *closeMetrics) DecrementConnections() {
	m.closed <- struct{}{}
}

func newChatApp(t *testing.T, opts ...eventum.Option) *eventum.App {
	t.Helper()

	app := eventum.New(append([]eventum.Option{
		eventum.WithLogger(logger.NewNop()),
		eventum.WithHideBanner(),
		eventum.WithHealthPath("/healthz"),
	}, opts...)...)

	app.HandshakeRoute("/ws", func(ctx context.Context, conn *eventum.Connection) error {
		if conn.Header("X-Token") != "secret" {
			return conn.SendHTTPResponse(ctx, eventum.NewHTTPResponse(http.StatusForbidden, "bad token", nil))
		}
		conn.SetFlag("token", conn.Header("X-Token"))
		return conn.Accept(ctx)
	}, "X-Token")

	app.HandshakeRoute("/open", func(ctx context.Context, conn *eventum.Connection) error {
		return conn.Accept(ctx)
	})

	app.Event("ping", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return conn.SendEvent(ctx, eventum.NewEvent("pong", nil))
	})
	app.Event("echo", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return conn.SendText(ctx, p.String("message"))
	}, eventum.Struct[echoRequest]())
	app.Event("bye", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return conn.Close(ctx, 3000, "bye")
	})
	app.Event("fail", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return errors.New("boom")
	})
	return app
}

func TestEndToEndPingPong(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))
	conn := srv.Connect("/ws", eventumtest.WithHeader("X-Token", "secret"))

	conn.SendEvent("ping", nil)
	var got map[string]any
	conn.ReadJSON(&got)
	assert.Equal(t, map[string]any{"event": "pong"}, got)
}

func TestEndToEndEchoValidation(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))
	conn := srv.Connect("/ws", eventumtest.WithHeader("x-token", "secret"))

	conn.SendEvent("echo", nil)
	assert.JSONEq(t, `{"event":"validation_error","message":"Invalid data received"}`, conn.ReadText())

	// 校验失败后连接仍可用
	conn.SendEvent("echo", map[string]any{"message": "hello"})
	assert.Equal(t, "hello", conn.ReadText())

	// 无法解码的消息被忽略
	conn.SendText("garbage")
	conn.SendEvent("ping", nil)
	assert.JSONEq(t, `{"event":"pong"}`, conn.ReadText())
}

func TestEndToEndMissingHeader(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	_, resp, err := srv.Dial("/ws")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndToEndHandshakeDeniedByHandler(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	_, resp, err := srv.Dial("/ws", eventumtest.WithHeader("X-Token", "wrong"))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEndToEndRouteNotFound(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	_, resp, err := srv.Dial("/missing")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEndSubprotocol(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	conn := srv.Connect("/open", eventumtest.WithSubprotocols("chat.v2", "chat.v1"))
	assert.Equal(t, "chat.v2", conn.Subprotocol())

	conn = srv.Connect("/open")
	assert.Empty(t, conn.Subprotocol())
}

func TestEndToEndServerClose(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))
	conn := srv.Connect("/open")

	conn.SendEvent("bye", nil)
	assert.Equal(t, 3000, conn.ExpectClose())
}

func TestEndToEndHandlerErrorCloses(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))
	conn := srv.Connect("/open")

	conn.SendEvent("fail", nil)
	assert.Equal(t, websocket.CloseNormalClosure, conn.ExpectClose())
}

func TestEndToEndClientDisconnect(t *testing.T) {
	metrics := &closeMetrics{closed: make(chan struct{}, 1)}
	srv := eventumtest.NewServer(t, newChatApp(t, eventum.WithMetrics(metrics)))
	conn := srv.Connect("/open")

	conn.CloseWith(4001, "leaving")

	select {
	case <-metrics.closed:
	case <-time.After(eventumtest.DefaultTimeout):
		t.Fatal("server did not observe the client disconnect")
	}
}

func TestEndToEndPlainHTTP(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	resp, err := http.Get(srv.HTTPURL("/ws"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Framework doesn't support http requests", string(body))
}

func TestEndToEndHealth(t *testing.T) {
	srv := eventumtest.NewServer(t, newChatApp(t))

	resp, err := http.Get(srv.HTTPURL("/healthz"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestEndToEndLifespan(t *testing.T) {
	var startups, shutdowns atomic.Int32
	app := newChatApp(t)
	app.OnStartup(func(ctx context.Context) error {
		startups.Add(1)
		return nil
	})
	app.OnShutdown(func(ctx context.Context) error {
		shutdowns.Add(1)
		return nil
	})

	srv := eventumtest.NewServer(t, app)
	assert.Equal(t, int32(1), startups.Load())
	assert.Equal(t, int32(0), shutdowns.Load())

	conn := srv.Connect("/open")
	require.NoError(t, srv.Close())

	// 关机时仍打开的连接收到 1001
	assert.Equal(t, websocket.CloseGoingAway, conn.ExpectClose())

	assert.Equal(t, int32(1), startups.Load())
	assert.Equal(t, int32(1), shutdowns.Load())
	require.NoError(t, srv.Close())
}
