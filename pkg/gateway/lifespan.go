package gateway

import (
	"context"
	"fmt"
)

// Lifespan 驱动应用的启动/关闭事件
//
// 应用在 lifespan 会话中依次收到 lifespan.startup 与 lifespan.shutdown，
// 并以 *.complete 或 *.failed 应答。
type Lifespan struct {
	t    *MemoryTransport
	done chan error
	sent int
}

// StartLifespan 运行应用的 lifespan 会话并等待启动完成
//
// 应用不处理 lifespan（未应答即返回 nil）时返回 ErrLifespanNotServed，
// 调用方可以忽略该错误继续运行。
func StartLifespan(ctx context.Context, app Application) (*Lifespan, error) {
	l := &Lifespan{
		t:    NewMemoryTransport(2),
		done: make(chan error, 1),
	}

	go func() {
		// 关闭阶段结束后应用才会返回，使用独立的 ctx
		l.done <- app.Serve(context.WithoutCancel(ctx), Scope{Type: ScopeLifespan}, l.t)
	}()

	l.t.Push(Message{Type: TypeLifespanStartup})
	return l, l.await(ctx, TypeLifespanStartupComplete, TypeLifespanStartupFailed)
}

// Shutdown 发送关闭事件并等待完成
func (l *Lifespan) Shutdown(ctx context.Context) error {
	l.t.Push(Message{Type: TypeLifespanShutdown})
	return l.await(ctx, TypeLifespanShutdownComplete, TypeLifespanShutdownFailed)
}

func (l *Lifespan) await(ctx context.Context, complete, failed MessageType) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	idx := l.sent
	replies := make(chan Message, 1)
	go func() {
		sent, err := l.t.WaitSent(waitCtx, idx+1)
		if err == nil {
			replies <- sent[idx]
		}
	}()

	reply := func(msg Message) error {
		l.sent++
		switch msg.Type {
		case complete:
			return nil
		case failed:
			return fmt.Errorf("%w: %s", ErrLifespanFailed, msg.Message)
		}
		return fmt.Errorf("%w: unexpected %s", ErrInvalidMessage, msg.Type)
	}

	select {
	case msg := <-replies:
		return reply(msg)
	case err := <-l.done:
		l.done <- err
		// 应用可能在应答后立即返回
		if sent := l.t.Sent(); len(sent) > idx {
			return reply(sent[idx])
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLifespanFailed, err)
		}
		return ErrLifespanNotServed
	case <-ctx.Done():
		return ctx.Err()
	}
}
