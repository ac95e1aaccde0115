package eventum

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

// Server 基于 gin 的 HTTP 服务器
//
// 健康检查由 gin 路由处理，其余请求全部交给 WebSocket 网关。
type Server struct {
	app    *App
	engine *gin.Engine
	server *http.Server

	// 关闭时取消，用于结束仍在运行的事件循环
	baseCtx context.Context
	cancel  context.CancelFunc

	lifespan *gateway.Lifespan

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer 创建服务器
func (a *App) NewServer() (*Server, error) {
	handler, err := a.Handler()
	if err != nil {
		return nil, err
	}

	config := a.config

	// gin.SetMode 是全局操作，只在非默认值时覆盖
	if gin.Mode() == gin.DebugMode || config.Mode != gin.DebugMode {
		gin.SetMode(config.Mode)
	}
	silenceGin()

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.Use(gin.Recovery(), logger.Middleware(a.logger))

	if config.TrustedProxies != nil {
		if err := engine.SetTrustedProxies(config.TrustedProxies); err != nil {
			a.logger.Warn("set trusted proxies failed", zap.Error(err))
		}
	}

	if config.Server.HealthPath != "" {
		engine.GET(config.Server.HealthPath, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	engine.NoRoute(func(c *gin.Context) {
		// NoRoute 预置了 404，交给网关前重置
		c.Status(http.StatusOK)
		handler.ServeHTTP(c.Writer, c.Request)
	})

	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		app:     a,
		engine:  engine,
		baseCtx: baseCtx,
		cancel:  cancel,
	}
	s.server = &http.Server{
		Addr:              config.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
		MaxHeaderBytes:    config.Server.MaxHeaderBytes,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	return s, nil
}

// Engine 返回底层 gin.Engine
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler { return s.engine }

// Startup 执行启动回调，Serve 前已调用时 Serve 不再重复执行
func (s *Server) Startup(ctx context.Context) error {
	l, err := gateway.StartLifespan(ctx, s.app)
	if err != nil {
		return err
	}
	s.lifespan = l
	return nil
}

// Run 启动服务器并阻塞直到收到 SIGINT/SIGTERM，随后优雅关机
func (s *Server) Run(addr ...string) error {
	address := s.server.Addr
	if len(addr) > 0 && addr[0] != "" {
		address = addr[0]
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve 在给定 listener 上运行，行为同 Run
func (s *Server) Serve(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.lifespan == nil {
		if err := s.Startup(ctx); err != nil {
			_ = ln.Close()
			return err
		}
	}

	if !s.app.config.HideBanner {
		s.printBanner(ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// 外部调用 Shutdown 时也要唤醒下面的关机协程
		defer stop()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.app.config.Shutdown.Timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.app.logger.Info("server exited")
	return nil
}

// Shutdown 关闭服务器：结束事件循环、关闭 HTTP 服务并执行关闭回调
//
// 多次调用只执行一次，返回首次的结果。
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		shutdown := s.app.config.Shutdown
		if shutdown.BeforeShutdown != nil {
			shutdown.BeforeShutdown()
		}

		s.cancel()

		var errs []error
		if err := s.server.Shutdown(ctx); err != nil {
			s.app.logger.Error("server forced to shutdown", zap.Error(err))
			errs = append(errs, err)
		}
		if s.lifespan != nil {
			if err := s.lifespan.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if shutdown.AfterShutdown != nil {
			shutdown.AfterShutdown()
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// Run 创建服务器并运行
func (a *App) Run(addr ...string) error {
	s, err := a.NewServer()
	if err != nil {
		return err
	}
	return s.Run(addr...)
}
