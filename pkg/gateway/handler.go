package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/eventum/pkg/logger"
)

// Handler 基于 gorilla/websocket 的 HTTP 网关
type Handler struct {
	app      Application
	config   *Config
	upgrader *websocket.Upgrader
	logger   logger.Logger
}

// NewHandler 创建网关
func NewHandler(app Application, l logger.Logger, opts ...Option) (*Handler, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNop()
	}

	return &Handler{
		app:      app,
		config:   config,
		upgrader: newUpgrader(config),
		logger:   l,
	}, nil
}

// ServeHTTP 实现 http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromRequest(r)

	if scope.Type == ScopeWebSocket {
		t := newWSTransport(w, r, h.upgrader, h.config)
		defer t.finish()
		h.serve(r.Context(), scope, t)
		return
	}

	t := &httpTransport{w: w, r: r}
	defer t.finish()
	h.serve(r.Context(), scope, t)
}

func (h *Handler) serve(ctx context.Context, scope Scope, t Transport) {
	if err := h.app.Serve(ctx, scope, t); err != nil {
		h.logger.ErrorContext(ctx, "application returned error",
			zap.String("scope", string(scope.Type)),
			zap.String("path", scope.Path),
			zap.Error(err),
		)
	}
}

// ScopeFromRequest 根据 HTTP 请求生成 Scope
func ScopeFromRequest(r *http.Request) Scope {
	scope := Scope{
		Type:       ScopeHTTP,
		Path:       r.URL.Path,
		Headers:    r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	}
	if websocket.IsWebSocketUpgrade(r) {
		scope.Type = ScopeWebSocket
		scope.Subprotocols = websocket.Subprotocols(r)
	}
	return scope
}
