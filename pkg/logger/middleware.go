package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware 记录 HTTP 请求日志（WebSocket 连接在会话结束后记录）
func Middleware(l Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if c.IsWebsocket() {
			fields = append(fields, zap.Bool("websocket", true))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			l.ErrorContext(ctx, "HTTP Request", fields...)
		case status >= 400:
			l.WarnContext(ctx, "HTTP Request", fields...)
		default:
			l.InfoContext(ctx, "HTTP Request", fields...)
		}
	}
}
