package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/eventum"
	"github.com/tokmz/eventum/pkg/config"
	"github.com/tokmz/eventum/pkg/errors"
	"github.com/tokmz/eventum/pkg/logger"
	"github.com/tokmz/eventum/pkg/tracing"
)

// ChatConfig 应用自定义配置段
type ChatConfig struct {
	Token string `mapstructure:"token"`
}

// SayReq say 事件
type SayReq struct {
	Event string `json:"event"`
	Text  string `json:"text" binding:"required,max=500"`
}

// room 简单的广播房间
type room struct {
	mu      sync.RWMutex
	members map[string]*eventum.Connection
}

func (r *room) join(conn *eventum.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[conn.ID()] = conn
}

func (r *room) leave(conn *eventum.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, conn.ID())
}

// broadcast 发送失败的成员视为已离开
func (r *room) broadcast(ctx context.Context, event eventum.Event) {
	r.mu.RLock()
	var gone []*eventum.Connection
	for _, m := range r.members {
		if err := m.SendEvent(ctx, event); err != nil {
			gone = append(gone, m)
		}
	}
	r.mu.RUnlock()

	for _, m := range gone {
		r.leave(m)
	}
}

func main() {
	path := "example/config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1. 加载配置
	var log logger.Logger
	loader := config.New(
		config.WithConfigFile(path),
		config.WithOptional(),
		config.WithOnChange(func(s *config.Settings) {
			// 热更新日志级别
			if level, err := logger.ParseLevel(s.Log.Level); err == nil {
				log.SetLevel(level)
				log.Info("log level changed", zap.String("level", level.String()))
			}
		}),
	)
	settings, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()

	var chat ChatConfig
	if err := loader.UnmarshalKey("chat", &chat); err != nil || chat.Token == "" {
		chat.Token = "secret"
	}

	// 2. 初始化日志
	logCfg, err := settings.LoggerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger config: %v\n", err)
		os.Exit(1)
	}
	log, err = logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := loader.StartWatch(); err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}

	// 3. 初始化链路追踪
	tp, err := tracing.NewTracerProvider(context.Background(), settings.TracingConfig())
	if err != nil {
		log.Fatal("init tracing", zap.Error(err))
	}

	// 4. 创建应用
	app := eventum.New(append(settings.Options(),
		eventum.WithLogger(log),
		eventum.WithTracing(tp),
		eventum.WithShutdownTimeout(10*time.Second),
	)...)

	app.Use(tracing.Middleware())

	lobby := &room{members: make(map[string]*eventum.Connection)}

	app.OnStartup(func(ctx context.Context) error {
		log.Info("chat starting")
		return nil
	})
	app.OnShutdown(func(ctx context.Context) error {
		log.Info("chat stopping")
		return tracing.Shutdown(ctx)
	})

	// 5. 握手路由
	app.HandshakeRoute("/chat", func(ctx context.Context, conn *eventum.Connection) error {
		if conn.Header("X-Token") != chat.Token {
			return errors.ErrForbidden.WithMessage("invalid token")
		}
		conn.SetFlag("name", conn.Header("X-Name"))
		if err := conn.Accept(ctx, eventum.WithAcceptHeaders(http.Header{"X-Connection-Id": {conn.ID()}})); err != nil {
			return err
		}
		lobby.join(conn)
		return nil
	}, "X-Token")

	app.HandshakeRoute("/echo", func(ctx context.Context, conn *eventum.Connection) error {
		return conn.Accept(ctx)
	})

	// 6. 事件
	app.Event("ping", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return conn.SendEvent(ctx, eventum.NewEvent("pong", nil))
	})

	app.Event("echo", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		return conn.SendText(ctx, p.String("message"))
	}, eventum.Struct[struct {
		Message string `json:"message" binding:"required"`
	}]())

	app.Event("say", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		var req SayReq
		if err := p.Bind(&req); err != nil {
			return err
		}
		name, _ := conn.Flag("name").(string)
		ctx, span := tracing.StartSpan(ctx, conn, "room.broadcast")
		defer span.End()
		tracing.SetAttributes(span, map[string]any{"room": "lobby", "from": name})

		lobby.broadcast(ctx, eventum.NewEvent("said", map[string]any{
			"from": name,
			"text": req.Text,
		}))
		return nil
	}, eventum.Struct[SayReq]())

	app.Event("leave", func(ctx context.Context, conn *eventum.Connection, p *eventum.Payload) error {
		lobby.leave(conn)
		return conn.Close(ctx, 3000, "bye")
	})

	// 7. 启动服务（Ctrl+C 优雅关机）
	if err := app.Run(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
