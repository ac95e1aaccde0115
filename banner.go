package eventum

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version 框架版本号
const Version = "0.3.0"

const banner = `
  ___ __   __ ___  _  _  _____  _   _  __  __
 | __|\ \ / /| __|| \| ||_   _|| | | ||  \/  |   WebSocket 事件框架
 | _|  \ V / | _| | .  |  | |  | |_| || |\/| |   open: %s
 |___|  \_/  |___||_|\_|  |_|   \___/ |_|  |_|   version: %s
`

// printBanner 打印启动 banner、握手路由与事件表
func (s *Server) printBanner(addr string) {
	out := os.Stdout

	var open string
	switch {
	case strings.HasPrefix(addr, ":"):
		open = "ws://127.0.0.1" + addr
	case strings.HasPrefix(addr, "[::]:"):
		open = "ws://127.0.0.1" + strings.TrimPrefix(addr, "[::]")
	default:
		open = "ws://" + addr
	}

	fPrint(out, banner, open, Version)
	fPrint(out, "\n")

	mode := s.app.config.Mode
	if routes := s.app.handshake.Routes(); len(routes) > 0 {
		printList(out, mode, "WS", "\033[32m", routes)
	}
	if events := s.app.events.Events(); len(events) > 0 {
		printList(out, mode, "EVENT", "\033[36m", events)
	}
	if path := s.app.config.Server.HealthPath; path != "" {
		printList(out, mode, "GET", "\033[34m", []string{path})
	}
	fPrint(out, "\n")

	if mode == gin.DebugMode {
		fPrint(out, "[Eventum] Running in \"%s\" mode. Switch to \"release\" mode in production.\n", mode)
	} else {
		fPrint(out, "[Eventum] Running in \"%s\" mode.\n", mode)
	}
	fPrint(out, "[Eventum] Go version: %s | OS: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fPrint(out, "[Eventum] Listening on %s\n", addr)
}

const resetColor = "\033[0m"

// printList 按 gin 风格打印一组条目
func printList(out io.Writer, mode, kind, color string, items []string) {
	for _, item := range items {
		fPrint(out, "[Eventum-%s] %s %-5s %s %s\n", mode, color, kind, resetColor, item)
	}
}

// silenceGin 静默 gin 的默认输出
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

// fPrint 打印到 writer，忽略错误（banner 输出场景）
func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
