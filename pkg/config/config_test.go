package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/eventum"
	"github.com/tokmz/eventum/pkg/logger"
	"github.com/tokmz/eventum/pkg/tracing"
)

const testYAML = `
mode: test
server:
  addr: ":9000"
  read_header_timeout: 3s
  shutdown_timeout: 5s
  health_path: /healthz
  poll_interval: 50ms
websocket:
  read_buffer_size: 2048
  write_buffer_size: 4096
  max_message_size: 1024
  allowed_origins:
    - https://example.com
log:
  level: warn
  format: console
  file: /tmp/eventum.log
  max_size: 5
tracing:
  enabled: true
  service_name: chat
  exporter: noop
  sampling_rate: 0.5
  ignored_events: [ping]
`

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew(t *testing.T) {
	l := New()
	assert.NotNil(t, l.viper)
	assert.Equal(t, DefaultEnvPrefix, l.envPrefix)
	assert.False(t, l.autoWatch)
}

func TestLoad(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	s, err := New(WithConfigFile(cfgPath)).Load()
	require.NoError(t, err)

	assert.Equal(t, "test", s.Mode)
	assert.Equal(t, ":9000", s.Server.Addr)
	assert.Equal(t, 3*time.Second, s.Server.ReadHeaderTimeout)
	assert.Equal(t, 5*time.Second, s.Server.ShutdownTimeout)
	assert.Equal(t, 50*time.Millisecond, s.Server.PollInterval)
	assert.Equal(t, "/healthz", s.Server.HealthPath)
	assert.Equal(t, 2048, s.WebSocket.ReadBufferSize)
	assert.Equal(t, int64(1024), s.WebSocket.MaxMessageSize)
	assert.Equal(t, []string{"https://example.com"}, s.WebSocket.AllowedOrigins)
	assert.Equal(t, "warn", s.Log.Level)
	assert.True(t, s.Tracing.Enabled)
	assert.Equal(t, "chat", s.Tracing.ServiceName)

	// 未出现在文件中的键使用默认值
	assert.Equal(t, 60*time.Second, s.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, s.WebSocket.HandshakeTimeout)
	assert.Equal(t, 30, s.Log.MaxAge)
}

func TestLoadWithNameAndPaths(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "eventum.yaml", testYAML)

	l := New(
		WithConfigName("eventum"),
		WithConfigType("yaml"),
		WithConfigPaths(dir),
	)
	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", s.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "eventum.yaml"), l.ConfigFileUsed())
}

func TestLoadDefaultsOnly(t *testing.T) {
	s, err := New().Load()
	require.NoError(t, err)

	assert.Equal(t, "release", s.Mode)
	assert.Equal(t, ":7777", s.Server.Addr)
	assert.Equal(t, time.Duration(0), s.Server.PollInterval)
	assert.Equal(t, "info", s.Log.Level)
	assert.False(t, s.Tracing.Enabled)
}

func TestConfigFileNotFound(t *testing.T) {
	_, err := New(WithConfigFile("/nonexistent/eventum.yaml")).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigReadFailed) || errors.Is(err, ErrConfigNotFound))
}

func TestConfigFileNotFoundByName(t *testing.T) {
	_, err := New(
		WithConfigName("missing"),
		WithConfigPaths(t.TempDir()),
	).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestOptionalConfigFile(t *testing.T) {
	s, err := New(
		WithConfigName("missing"),
		WithConfigPaths(t.TempDir()),
		WithOptional(),
	).Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", s.Server.Addr)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("EVENTUM_SERVER_ADDR", ":9999")
	t.Setenv("EVENTUM_LOG_LEVEL", "debug")

	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	s, err := New(WithConfigFile(cfgPath)).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", s.Server.Addr)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestWithEnvPrefix(t *testing.T) {
	t.Setenv("CHAT_SERVER_ADDR", ":8088")

	s, err := New(WithEnvPrefix("CHAT")).Load()
	require.NoError(t, err)
	assert.Equal(t, ":8088", s.Server.Addr)
}

func TestWithDefaults(t *testing.T) {
	s, err := New(WithDefaults(map[string]any{
		"server.addr": ":1234",
	})).Load()
	require.NoError(t, err)
	assert.Equal(t, ":1234", s.Server.Addr)
}

func TestGetters(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML+`
app:
  room: lobby
  tags: [a, b]
`)
	l := New(WithConfigFile(cfgPath))
	_, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "lobby", l.GetString("app.room"))
	assert.Equal(t, 2048, l.GetInt("websocket.read_buffer_size"))
	assert.True(t, l.GetBool("tracing.enabled"))
	assert.Equal(t, 3*time.Second, l.GetDuration("server.read_header_timeout"))
	assert.Equal(t, []string{"a", "b"}, l.GetStringSlice("app.tags"))
	assert.Equal(t, "lobby", Get[string](l, "app.room"))
	assert.Equal(t, 0, Get[int](l, "app.room"))
	assert.True(t, l.IsSet("app.room"))
	assert.False(t, l.IsSet("app.missing"))

	var app struct {
		Room string   `mapstructure:"room"`
		Tags []string `mapstructure:"tags"`
	}
	require.NoError(t, l.UnmarshalKey("app", &app))
	assert.Equal(t, "lobby", app.Room)
	assert.Equal(t, []string{"a", "b"}, app.Tags)

	l.Set("app.room", "hall")
	assert.Equal(t, "hall", l.GetString("app.room"))
}

func TestSettingsOptions(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	s, err := New(WithConfigFile(cfgPath)).Load()
	require.NoError(t, err)

	app := eventum.New(append(s.Options(), eventum.WithLogger(logger.NewNop()))...)
	cfg := app.Config()

	assert.Equal(t, "test", cfg.Mode)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/healthz", cfg.Server.HealthPath)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.NotEmpty(t, cfg.Gateway)

	_, err = app.Handler()
	assert.NoError(t, err)
}

func TestGatewayOptionsAllowAll(t *testing.T) {
	s := &Settings{WebSocket: WebSocketSettings{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  []string{"*"},
	}}
	assert.Len(t, s.GatewayOptions(), 6)

	s.WebSocket.AllowedOrigins = nil
	assert.Len(t, s.GatewayOptions(), 5)
}

func TestLoggerConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	s, err := New(WithConfigFile(cfgPath)).Load()
	require.NoError(t, err)

	lc, err := s.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logger.WarnLevel, lc.Level)
	assert.Equal(t, logger.ConsoleFormat, lc.Format)
	assert.Equal(t, map[string]string{"service": "chat"}, lc.Fields)
	require.NotNil(t, lc.Rotate)
	assert.Equal(t, "/tmp/eventum.log", lc.Rotate.Filename)
	assert.Equal(t, 5, lc.Rotate.MaxSize)

	s.Log.Level = "loud"
	_, err = s.LoggerConfig()
	assert.Error(t, err)
}

func TestTracingConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	s, err := New(WithConfigFile(cfgPath)).Load()
	require.NoError(t, err)

	tc := s.TracingConfig()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "chat", tc.ServiceName)
	assert.Equal(t, tracing.ExporterNoop, tc.ExporterType)
	assert.Equal(t, 0.5, tc.SamplingRate)
	assert.Equal(t, []string{"ping"}, tc.IgnoredEvents)
	assert.Equal(t, eventum.Version, tc.ServiceVersion)
	assert.NoError(t, tc.Validate())
}

func TestWatchOnChange(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	changed := make(chan *Settings, 1)
	l := New(
		WithConfigFile(cfgPath),
		WithAutoWatch(true),
		WithOnChange(func(s *Settings) {
			select {
			case changed <- s:
			default:
			}
		}),
	)
	_, err := l.Load()
	require.NoError(t, err)
	defer l.Close()
	assert.True(t, l.IsWatching())

	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: debug\n"), 0644))

	select {
	case s := <-changed:
		assert.Equal(t, "debug", s.Log.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("onChange callback was not triggered within timeout")
	}
}

func TestStartStopWatch(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	l := New(WithConfigFile(cfgPath))
	_, err := l.Load()
	require.NoError(t, err)

	require.NoError(t, l.StartWatch())
	require.NoError(t, l.StartWatch())
	assert.True(t, l.IsWatching())

	l.StopWatch()
	assert.False(t, l.IsWatching())
	l.Close()
}

func TestStartWatchWithoutFile(t *testing.T) {
	l := New()
	_, err := l.Load()
	require.NoError(t, err)
	assert.ErrorIs(t, l.StartWatch(), ErrConfigNotFound)
}

func TestWithOnError(t *testing.T) {
	var got error
	l := New(WithOnError(func(err error) { got = err }))
	l.reportError(errors.New("boom"))
	assert.EqualError(t, got, "boom")
}

func TestConcurrentAccess(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	l := New(WithConfigFile(cfgPath))
	_, err := l.Load()
	require.NoError(t, err)

	var wg sync.WaitGroup
	const goroutines = 50

	for i := 0; i < goroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = l.GetString("server.addr")
			_, _ = l.Settings()
		}()
		go func(i int) {
			defer wg.Done()
			l.Set("dynamic.key", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, ":9000", l.GetString("server.addr"))
}
