package eventum

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LoopState 事件循环状态
type LoopState int

const (
	StateAwaitingMessage LoopState = iota
	StateDecoding
	StateDispatching
	StateDisconnected
	StateFatalError
)

// String 返回状态名称
func (s LoopState) String() string {
	switch s {
	case StateAwaitingMessage:
		return "awaiting_message"
	case StateDecoding:
		return "decoding"
	case StateDispatching:
		return "dispatching"
	case StateDisconnected:
		return "disconnected"
	case StateFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// EventLoop 连接接受后逐条接收、解码并分发消息
//
// 同一连接的消息严格按到达顺序串行处理。
type EventLoop struct {
	router       *EventRouter
	pollInterval time.Duration
	metrics      Metrics
	tracer       trace.Tracer
}

// NewEventLoop 创建事件循环
func NewEventLoop(router *EventRouter, pollInterval time.Duration, metrics Metrics) *EventLoop {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &EventLoop{
		router:       router,
		pollInterval: pollInterval,
		metrics:      metrics,
		tracer:       otel.Tracer(tracerName),
	}
}

// Run 运行直到断开或致命错误，返回终止状态
func (l *EventLoop) Run(ctx context.Context, conn *Connection) LoopState {
	log := conn.Logger()

	for {
		if l.pollInterval > 0 {
			select {
			case <-time.After(l.pollInterval):
			case <-ctx.Done():
				return StateDisconnected
			}
		}

		data, err := conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrDisconnected) {
				log.DebugContext(ctx, "connection disconnected", zap.Error(err))
				return StateDisconnected
			}
			log.ErrorContext(ctx, "receive failed", zap.Error(err))
			l.closeOnError(ctx, conn)
			return StateFatalError
		}
		if len(data) == 0 {
			continue
		}

		payload, err := DecodePayload(data)
		if err != nil {
			l.metrics.IncrementInvalidPayloads()
			log.WarnContext(ctx, "discarding undecodable message", zap.Error(err))
			continue
		}

		err = l.dispatch(ctx, conn, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrValidationFailed):
			l.metrics.IncrementValidationFailures(payload.Event)
			log.DebugContext(ctx, "event validation failed", zap.Error(err))
			if sendErr := conn.SendEvent(ctx, ValidationErrorEvent); sendErr != nil {
				log.WarnContext(ctx, "send validation error event failed", zap.Error(sendErr))
			}
		case errors.Is(err, ErrDisconnected):
			return StateDisconnected
		default:
			l.metrics.IncrementHandlerErrors(payload.Event)
			log.ErrorContext(ctx, "event handler failed",
				zap.String("event", payload.Event),
				zap.Error(err),
			)
			l.closeOnError(ctx, conn)
			return StateFatalError
		}
	}
}

// dispatch 分发一条事件，处理器 panic 视为普通错误
func (l *EventLoop) dispatch(ctx context.Context, conn *Connection, p *Payload) (err error) {
	ctx, span := l.tracer.Start(ctx, "eventum.event "+p.Event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("eventum.event", p.Event),
			attribute.String("eventum.connection_id", conn.ID()),
		),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in event handler: %v\n%s", r, debug.Stack())
		}
		if err != nil && !errors.Is(err, ErrValidationFailed) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		l.metrics.IncrementEvents(p.Event)
		l.metrics.RecordEventLatency(p.Event, time.Since(start))
	}()

	return l.router.Dispatch(ctx, conn, p)
}

func (l *EventLoop) closeOnError(ctx context.Context, conn *Connection) {
	if err := conn.Close(ctx, 0, ""); err != nil {
		conn.Logger().DebugContext(ctx, "close after error failed", zap.Error(err))
	}
}
