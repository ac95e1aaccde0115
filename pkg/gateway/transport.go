package gateway

import "context"

// Transport 会话收发原语
//
// Receive 阻塞直到有消息、会话结束或 ctx 结束；Send 需保证并发安全。
type Transport interface {
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, msg Message) error
}

// Application 网关驱动的应用
type Application interface {
	Serve(ctx context.Context, scope Scope, t Transport) error
}

// ApplicationFunc 函数形式的 Application
type ApplicationFunc func(ctx context.Context, scope Scope, t Transport) error

// Serve 实现 Application
func (f ApplicationFunc) Serve(ctx context.Context, scope Scope, t Transport) error {
	return f(ctx, scope, t)
}
