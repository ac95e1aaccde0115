package eventum

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// HandshakeHandler 握手处理器，通常在其中调用 conn.Accept
type HandshakeHandler func(ctx context.Context, conn *Connection) error

type handshakeRoute struct {
	handler         HandshakeHandler
	requiredHeaders []string // 小写
}

// HandshakeRouter 按路径精确匹配握手处理器
type HandshakeRouter struct {
	mu     sync.RWMutex
	routes map[string]handshakeRoute
}

// NewHandshakeRouter 创建握手路由器
func NewHandshakeRouter() *HandshakeRouter {
	return &HandshakeRouter{routes: make(map[string]handshakeRoute)}
}

// Route 注册握手路由，重复注册同一路径时后者覆盖前者
func (r *HandshakeRouter) Route(path string, handler HandshakeHandler, requiredHeaders ...string) {
	r.AddRoute(path, handler, requiredHeaders)
}

// AddRoute 注册握手路由，必需请求头名称统一转为小写
func (r *HandshakeRouter) AddRoute(path string, handler HandshakeHandler, requiredHeaders []string) {
	if handler == nil {
		panic("eventum: nil handshake handler for path " + path)
	}

	var names []string
	for _, h := range requiredHeaders {
		names = append(names, strings.ToLower(h))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = handshakeRoute{handler: handler, requiredHeaders: names}
}

// Routes 已注册的路径（排序）
func (r *HandshakeRouter) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Dispatch 分发握手
//
// 路径未注册返回 ErrRouteNotFound；缺少必需请求头返回 ErrRequiredHeadersMissing；
// 否则调用处理器并原样返回其错误。
func (r *HandshakeRouter) Dispatch(ctx context.Context, conn *Connection) error {
	r.mu.RLock()
	route, ok := r.routes[conn.Path()]
	r.mu.RUnlock()

	if !ok {
		return ErrRouteNotFound
	}

	for _, name := range route.requiredHeaders {
		if !conn.HasHeader(name) {
			conn.Logger().DebugContext(ctx, "required header missing", zap.String("header", name))
			return ErrRequiredHeadersMissing
		}
	}

	return route.handler(ctx, conn)
}
