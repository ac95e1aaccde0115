package eventum

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tokmz/eventum/pkg/gateway"
	"github.com/tokmz/eventum/pkg/logger"
)

// syncBuffer 可并发写入的日志缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries 解析 JSON 日志行
func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	data := b.buf.String()
	b.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

// messages 返回所有日志消息
func (b *syncBuffer) messages(t *testing.T) []string {
	var msgs []string
	for _, e := range b.entries(t) {
		msg, _ := e["msg"].(string)
		msgs = append(msgs, msg)
	}
	return msgs
}

func newTestLogger(t *testing.T) (logger.Logger, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	l, err := logger.New(&logger.Config{
		Level:  logger.DebugLevel,
		Format: logger.JSONFormat,
		Writer: buf,
	})
	require.NoError(t, err)
	return l, buf
}

func wsScope(path string, headers http.Header, subprotocols ...string) gateway.Scope {
	return gateway.Scope{
		Type:         gateway.ScopeWebSocket,
		Path:         path,
		Headers:      headers,
		Subprotocols: subprotocols,
		RemoteAddr:   "127.0.0.1:50000",
	}
}

func newTestConnection(path string, headers http.Header, subprotocols ...string) (*Connection, *gateway.MemoryTransport) {
	tr := gateway.NewMemoryTransport(16)
	return NewConnection(wsScope(path, headers, subprotocols...), tr, logger.NewNop()), tr
}
