package eventum

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

const tracerName = "github.com/tokmz/eventum"

// 非 WebSocket 请求的响应
const httpNotSupportedBody = "Framework doesn't support http requests"

// Hook 生命周期回调
type Hook func(ctx context.Context) error

// App 应用：持有握手路由、中间件链、事件路由与生命周期回调
type App struct {
	config *Config
	logger logger.Logger

	handshake *HandshakeRouter
	chain     *middlewareChain
	events    *EventRouter
	loop      *EventLoop

	hookMu        sync.Mutex
	startupHooks  []Hook
	shutdownHooks []Hook
}

// New 创建应用
func New(opts ...Option) *App {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}

	handshake := NewHandshakeRouter()
	events := NewEventRouter()

	loop := NewEventLoop(events, config.PollInterval, config.Metrics)
	if config.TracerProvider != nil {
		loop.tracer = config.TracerProvider.Tracer(tracerName)
	}

	return &App{
		config:    config,
		logger:    config.Logger,
		handshake: handshake,
		chain:     newMiddlewareChain(handshake, config.Logger),
		events:    events,
		loop:      loop,
	}
}

// Logger 应用 Logger
func (a *App) Logger() logger.Logger { return a.logger }

// Config 应用配置
func (a *App) Config() *Config { return a.config }

// HandshakeRouter 握手路由器
func (a *App) HandshakeRouter() *HandshakeRouter { return a.handshake }

// EventRouter 事件路由器
func (a *App) EventRouter() *EventRouter { return a.events }

// HandshakeRoute 注册握手路由
func (a *App) HandshakeRoute(path string, handler HandshakeHandler, requiredHeaders ...string) {
	a.handshake.Route(path, handler, requiredHeaders...)
}

// AddHandshakeRoute 注册握手路由
func (a *App) AddHandshakeRoute(path string, handler HandshakeHandler, requiredHeaders []string) {
	a.handshake.AddRoute(path, handler, requiredHeaders)
}

// Event 注册事件，最多接受一个校验器
func (a *App) Event(event string, handler EventHandler, validator ...Validator) {
	var v Validator
	if len(validator) > 0 {
		v = validator[0]
	}
	a.events.Route(event, handler, v)
}

// AddEvent 注册事件
func (a *App) AddEvent(event string, handler EventHandler, validator Validator) {
	a.events.AddEvent(event, handler, validator)
}

// Use 注册握手中间件，按注册顺序由外到内执行
func (a *App) Use(mws ...Middleware) {
	a.chain.use(mws...)
}

// OnStartup 注册启动回调
func (a *App) OnStartup(fn Hook) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.startupHooks = append(a.startupHooks, fn)
}

// OnShutdown 注册关闭回调
func (a *App) OnShutdown(fn Hook) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.shutdownHooks = append(a.shutdownHooks, fn)
}

// Handler 基于 gorilla/websocket 的 http.Handler
func (a *App) Handler() (http.Handler, error) {
	return gateway.NewHandler(a, a.logger, a.config.Gateway...)
}

// Serve 实现 gateway.Application
func (a *App) Serve(ctx context.Context, scope gateway.Scope, t gateway.Transport) error {
	switch scope.Type {
	case gateway.ScopeLifespan:
		return a.serveLifespan(ctx, t)
	case gateway.ScopeWebSocket:
		a.serveWebSocket(ctx, scope, t)
		return nil
	default:
		return rejectHTTP(ctx, t)
	}
}

func (a *App) serveWebSocket(ctx context.Context, scope gateway.Scope, t gateway.Transport) {
	conn := NewConnection(scope, t, a.logger)
	ctx = logger.WithConnectionID(ctx, conn.ID())

	a.config.Metrics.IncrementConnections()
	defer a.config.Metrics.DecrementConnections()

	if err := a.chain.stack()(ctx, conn); err != nil {
		conn.Logger().ErrorContext(ctx, "handshake chain returned error", zap.Error(err))
	}

	// 未接受（拒绝、失败或处理器未调用 Accept）时不进入事件循环
	if !conn.Accepted() {
		a.config.Metrics.IncrementRejectedHandshakes(scope.Path)
		return
	}

	state := a.loop.Run(ctx, conn)
	conn.Logger().DebugContext(ctx, "event loop finished", zap.Stringer("state", state))
}

// rejectHTTP 普通 HTTP 请求返回 400
func rejectHTTP(ctx context.Context, t gateway.Transport) error {
	if err := t.Send(ctx, gateway.Message{
		Type:    gateway.TypeResponseStart,
		Status:  http.StatusBadRequest,
		Headers: http.Header{"Content-Type": {"text/plain"}},
	}); err != nil {
		return err
	}
	return t.Send(ctx, gateway.Message{
		Type: gateway.TypeResponseBody,
		Body: []byte(httpNotSupportedBody),
	})
}

// serveLifespan 处理启动/关闭事件，每个回调各执行一次
func (a *App) serveLifespan(ctx context.Context, t gateway.Transport) error {
	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			return err
		}

		switch msg.Type {
		case gateway.TypeLifespanStartup:
			if err := a.runHooks(ctx, a.startupHooks); err != nil {
				a.logger.ErrorContext(ctx, "startup failed", zap.Error(err))
				return t.Send(ctx, gateway.Message{Type: gateway.TypeLifespanStartupFailed, Message: err.Error()})
			}
			if err := t.Send(ctx, gateway.Message{Type: gateway.TypeLifespanStartupComplete}); err != nil {
				return err
			}
		case gateway.TypeLifespanShutdown:
			if err := a.runHooks(ctx, a.shutdownHooks); err != nil {
				a.logger.ErrorContext(ctx, "shutdown failed", zap.Error(err))
				return t.Send(ctx, gateway.Message{Type: gateway.TypeLifespanShutdownFailed, Message: err.Error()})
			}
			return t.Send(ctx, gateway.Message{Type: gateway.TypeLifespanShutdownComplete})
		}
	}
}

func (a *App) runHooks(ctx context.Context, hooks []Hook) (err error) {
	a.hookMu.Lock()
	hooks = append([]Hook(nil), hooks...)
	a.hookMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in lifespan hook: %v", r)
		}
	}()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}
