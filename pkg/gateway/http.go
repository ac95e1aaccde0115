package gateway

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// httpTransport 普通 HTTP 请求会话
type httpTransport struct {
	w http.ResponseWriter
	r *http.Request

	mu       sync.Mutex
	read     bool
	started  bool
	finished bool
	status   int
	headers  http.Header
}

// Receive 第一次返回请求体，之后返回 disconnect
func (t *httpTransport) Receive(context.Context) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.read {
		return Disconnect(CloseNormal), nil
	}
	t.read = true
	body, err := io.ReadAll(t.r.Body)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeRequest, Body: body}, nil
}

func (t *httpTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Type {
	case TypeResponseStart:
		if t.started {
			return ErrResponseStarted
		}
		t.started = true
		t.status = msg.Status
		t.headers = msg.Headers
		return nil
	case TypeResponseBody:
		if !t.started {
			return ErrResponseNotStart
		}
		if t.finished {
			return ErrClosed
		}
		t.flush(msg.Body)
		return nil
	}
	return ErrInvalidMessage
}

func (t *httpTransport) flush(body []byte) {
	h := t.w.Header()
	for k, vs := range t.headers {
		h[k] = append([]string(nil), vs...)
	}
	t.w.WriteHeader(t.status)
	if len(body) > 0 {
		_, _ = t.w.Write(body)
	}
	t.finished = true
}

// finish 应用未完成响应时补齐
func (t *httpTransport) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.finished:
	case t.started:
		t.flush(nil)
	default:
		http.Error(t.w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		t.finished = true
	}
}
