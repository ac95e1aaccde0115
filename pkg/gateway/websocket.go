package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsState int

const (
	wsPending wsState = iota
	wsResponding
	wsAccepted
	wsDenied
	wsClosed
)

// wsTransport gorilla/websocket 会话
type wsTransport struct {
	w        http.ResponseWriter
	r        *http.Request
	upgrader *websocket.Upgrader
	config   *Config

	mu      sync.Mutex // 保护 state/conn/response 并串行化写操作
	state   wsState
	conn    *websocket.Conn
	status  int
	headers http.Header

	closeCode int
}

func newWSTransport(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, config *Config) *wsTransport {
	return &wsTransport{w: w, r: r, upgrader: upgrader, config: config}
}

// Receive 读取下一帧，阻塞直到有数据、对端断开或 ctx 结束
func (t *wsTransport) Receive(ctx context.Context) (Message, error) {
	t.mu.Lock()
	state, conn := t.state, t.conn
	t.mu.Unlock()

	switch state {
	case wsAccepted:
	case wsClosed, wsDenied:
		return Disconnect(t.lastCloseCode()), nil
	default:
		return Message{}, ErrNotAccepted
	}

	// ctx 结束时通过读超时打断阻塞读
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	mt, data, err := conn.ReadMessage()
	if err != nil {
		code := CloseAbnormal
		var ce *websocket.CloseError
		switch {
		case errors.As(err, &ce):
			code = ce.Code
		case ctx.Err() != nil:
			return Disconnect(t.goAway()), nil
		}
		code = t.markClosed(code)
		_ = conn.Close()
		return Disconnect(code), nil
	}

	if mt == websocket.TextMessage {
		return ReceiveText(string(data)), nil
	}
	return ReceiveBytes(data), nil
}

// Send 发送网关消息
func (t *wsTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Type {
	case TypeAccept:
		return t.accept(msg)
	case TypeSend:
		return t.write(msg)
	case TypeClose:
		return t.close(msg.Code, msg.Reason)
	case TypeHTTPResponseStart:
		if t.state != wsPending {
			return ErrResponseStarted
		}
		t.state = wsResponding
		t.status = msg.Status
		t.headers = msg.Headers
		return nil
	case TypeHTTPResponseBody:
		if t.state != wsResponding {
			return ErrResponseNotStart
		}
		t.writeResponse(msg.Body)
		return nil
	}
	return ErrInvalidMessage
}

func (t *wsTransport) accept(msg Message) error {
	if t.state != wsPending {
		return ErrAlreadyAccepted
	}

	header := msg.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Del("Sec-WebSocket-Extensions")
	if msg.Subprotocol != "" {
		header.Set("Sec-WebSocket-Protocol", msg.Subprotocol)
	}

	conn, err := t.upgrader.Upgrade(t.w, t.r, header)
	if err != nil {
		// Upgrade 失败时 gorilla 已写出 HTTP 错误响应
		t.state = wsDenied
		return err
	}
	if t.config.MaxMessageSize > 0 {
		conn.SetReadLimit(t.config.MaxMessageSize)
	}
	t.conn = conn
	t.state = wsAccepted
	return nil
}

func (t *wsTransport) write(msg Message) error {
	if t.state != wsAccepted {
		if t.state == wsClosed {
			return ErrClosed
		}
		return ErrNotAccepted
	}
	if t.config.WriteTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	if msg.Bytes != nil {
		return t.conn.WriteMessage(websocket.BinaryMessage, msg.Bytes)
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(msg.Text))
}

func (t *wsTransport) close(code int, reason string) error {
	switch t.state {
	case wsPending:
		// 握手前关闭视为拒绝
		t.status = defaultDenyCode
		t.writeResponse(nil)
		return nil
	case wsAccepted:
	default:
		return ErrClosed
	}

	if code == 0 {
		code = CloseNormal
	}
	deadline := time.Now().Add(time.Second)
	err := t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	t.state = wsClosed
	t.closeCode = code
	_ = t.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// writeResponse 以普通 HTTP 响应拒绝握手
func (t *wsTransport) writeResponse(body []byte) {
	h := t.w.Header()
	for k, vs := range t.headers {
		h[k] = append([]string(nil), vs...)
	}
	status := t.status
	if status == 0 {
		status = defaultDenyCode
	}
	t.w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = t.w.Write(body)
	}
	t.state = wsDenied
}

// markClosed 记录断开；本端已先关闭时保留本端的关闭码
func (t *wsTransport) markClosed(code int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == wsAccepted {
		t.state = wsClosed
		t.closeCode = code
	}
	return t.closeCode
}

// goAway ctx 结束（服务关闭）时向对端发送 1001 后断开
func (t *wsTransport) goAway() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == wsAccepted {
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(CloseGoingAway, ""), deadline)
		t.state = wsClosed
		t.closeCode = CloseGoingAway
	}
	_ = t.conn.Close()
	return t.closeCode
}

func (t *wsTransport) lastCloseCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeCode == 0 {
		return CloseNormal
	}
	return t.closeCode
}

// finish 应用返回后收尾：未响应则拒绝，已接受但未关闭则正常关闭
func (t *wsTransport) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case wsPending:
		t.status = defaultDenyCode
		t.writeResponse(nil)
	case wsResponding:
		t.writeResponse(nil)
	case wsAccepted:
		_ = t.close(CloseNormal, "")
	}
}
