package gateway

import (
	"context"
	"slices"
	"sync"
)

// MemoryTransport 进程内会话
//
// Push 写入的消息由 Receive 依次取出；Send 的消息被记录，可通过 Sent/WaitSent 读取。
// 发送 websocket.close 之后 Send 返回 ErrClosed，Receive 在收件箱清空后返回 disconnect。
type MemoryTransport struct {
	inbox chan Message

	mu     sync.Mutex
	sent   []Message
	notify chan struct{}
	closed bool
	code   int
}

// NewMemoryTransport 创建进程内会话，size 为收件箱容量
func NewMemoryTransport(size int) *MemoryTransport {
	return &MemoryTransport{
		inbox:  make(chan Message, size),
		notify: make(chan struct{}),
	}
}

// Push 投递一条待接收消息
func (t *MemoryTransport) Push(msg Message) {
	t.inbox <- msg
}

// Receive 实现 Transport
func (t *MemoryTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-t.inbox:
		return msg, nil
	default:
	}

	t.mu.Lock()
	closed, code := t.closed, t.code
	t.mu.Unlock()
	if closed {
		return Disconnect(code), nil
	}

	select {
	case msg := <-t.inbox:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Send 实现 Transport
func (t *MemoryTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if msg.Type == TypeClose {
		t.closed = true
		t.code = msg.Code
		if t.code == 0 {
			t.code = CloseNormal
		}
	}
	t.sent = append(t.sent, msg)
	close(t.notify)
	t.notify = make(chan struct{})
	return nil
}

// Sent 已发送消息的副本
func (t *MemoryTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sent)
}

// WaitSent 等待至少 n 条已发送消息
func (t *MemoryTransport) WaitSent(ctx context.Context, n int) ([]Message, error) {
	for {
		t.mu.Lock()
		if len(t.sent) >= n {
			out := slices.Clone(t.sent)
			t.mu.Unlock()
			return out, nil
		}
		ch := t.notify
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
