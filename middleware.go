package eventum

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	xerrors "github.com/tokmz/eventum/pkg/errors"
	"github.com/tokmz/eventum/pkg/logger"
)

// Middleware 握手中间件
//
// Wrap 在链构建时调用一次，返回包裹 next 的处理器；构造参数通过闭包或结构体字段携带。
type Middleware interface {
	Wrap(next HandshakeHandler) HandshakeHandler
}

// MiddlewareFunc 函数形式的中间件
type MiddlewareFunc func(ctx context.Context, conn *Connection, next HandshakeHandler) error

// Wrap 实现 Middleware
func (f MiddlewareFunc) Wrap(next HandshakeHandler) HandshakeHandler {
	return func(ctx context.Context, conn *Connection) error {
		return f(ctx, conn, next)
	}
}

// middlewareChain 握手中间件链
//
// 执行顺序（外到内）：ServerErrorLogger → 用户中间件（注册顺序）→ ExceptionTranslator → HandshakeRouter。
// 链在第一次使用时构建并缓存，之后注册的中间件不再生效。
type middlewareChain struct {
	router *HandshakeRouter
	logger logger.Logger

	mu          sync.Mutex
	middlewares []Middleware
	built       bool

	once    sync.Once
	handler HandshakeHandler
}

func newMiddlewareChain(router *HandshakeRouter, l logger.Logger) *middlewareChain {
	return &middlewareChain{router: router, logger: l}
}

func (c *middlewareChain) use(mws ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		c.logger.Warn("middleware registered after chain was built, ignored", zap.Int("count", len(mws)))
		return
	}
	c.middlewares = append(c.middlewares, mws...)
}

// stack 返回缓存的链，首次调用时构建
func (c *middlewareChain) stack() HandshakeHandler {
	c.once.Do(func() {
		c.mu.Lock()
		c.built = true
		mws := c.middlewares
		c.mu.Unlock()

		c.handler = construct(c.router.Dispatch, mws)
	})
	return c.handler
}

// construct 从内向外折叠中间件
func construct(dispatch HandshakeHandler, mws []Middleware) HandshakeHandler {
	h := ExceptionTranslator().Wrap(dispatch)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].Wrap(h)
	}
	return ServerErrorLogger().Wrap(h)
}

// ExceptionTranslator 把 *errors.Error 转换为握手 HTTP 响应，其他错误继续向外传播
func ExceptionTranslator() Middleware {
	return MiddlewareFunc(func(ctx context.Context, conn *Connection, next HandshakeHandler) error {
		err := next(ctx, conn)
		if err == nil {
			return nil
		}

		e, ok := xerrors.From(err)
		if !ok {
			return err
		}

		conn.Logger().DebugContext(ctx, "handshake rejected",
			zap.Int("status", e.HttpCode),
			zap.String("message", e.Message),
		)
		if sendErr := conn.SendHTTPResponse(ctx, &HTTPResponse{
			Status:  e.HttpCode,
			Headers: e.Headers,
			Body:    e.Body(),
		}); sendErr != nil {
			return fmt.Errorf("send http response: %w", sendErr)
		}
		return nil
	})
}

// ServerErrorLogger 记录握手阶段的所有错误与 panic 并吞掉
//
// 不发送响应也不关闭连接。
func ServerErrorLogger() Middleware {
	return MiddlewareFunc(func(ctx context.Context, conn *Connection, next HandshakeHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				conn.Logger().ErrorContext(ctx, "panic recovered in handshake",
					zap.Any("error", r),
					zap.String("stack", string(debug.Stack())),
				)
				err = nil
			}
		}()

		if err := next(ctx, conn); err != nil {
			conn.Logger().ErrorContext(ctx, "handshake failed", zap.Error(err))
		}
		return nil
	})
}
