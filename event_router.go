package eventum

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// EventHandler 事件处理器
type EventHandler func(ctx context.Context, conn *Connection, p *Payload) error

type eventRoute struct {
	handler   EventHandler
	validator Validator
}

// EventRouter 按 event 字段分发事件
type EventRouter struct {
	mu     sync.RWMutex
	events map[string]eventRoute
}

// NewEventRouter 创建事件路由器
func NewEventRouter() *EventRouter {
	return &EventRouter{events: make(map[string]eventRoute)}
}

// Route 注册事件，validator 可为 nil；重复注册时后者覆盖前者
func (r *EventRouter) Route(event string, handler EventHandler, validator Validator) {
	r.AddEvent(event, handler, validator)
}

// AddEvent 注册事件
func (r *EventRouter) AddEvent(event string, handler EventHandler, validator Validator) {
	if handler == nil {
		panic("eventum: nil event handler for " + event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event] = eventRoute{handler: handler, validator: validator}
}

// Events 已注册的事件名（排序）
func (r *EventRouter) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch 分发事件
//
// 未注册的事件只记录日志；校验失败返回 *ValidationError（匹配 ErrValidationFailed）；
// 处理器错误原样返回。
func (r *EventRouter) Dispatch(ctx context.Context, conn *Connection, p *Payload) error {
	r.mu.RLock()
	route, ok := r.events[p.Event]
	r.mu.RUnlock()

	if !ok {
		conn.Logger().DebugContext(ctx, "no handler for event", zap.String("event", p.Event))
		return nil
	}

	if route.validator != nil {
		if err := route.validator.Validate(p); err != nil {
			return &ValidationError{Event: p.Event, Err: err}
		}
	}

	return route.handler(ctx, conn, p)
}
