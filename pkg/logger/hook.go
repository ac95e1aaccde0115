package logger

import "go.uber.org/zap/zapcore"

// Hook 日志钩子接口
type Hook interface {
	// OnWrite 在日志写入时调用
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) error
}

// HookFunc 函数形式的 Hook
type HookFunc func(entry zapcore.Entry, fields []zapcore.Field) error

// OnWrite 实现 Hook
func (f HookFunc) OnWrite(entry zapcore.Entry, fields []zapcore.Field) error {
	return f(entry, fields)
}

// hookCore 实现 Hook 机制的 Core
type hookCore struct {
	zapcore.Core
	hooks []Hook
}

// Write 先调用 Hooks 再写入
func (c *hookCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	for _, hook := range c.hooks {
		if err := hook.OnWrite(entry, fields); err != nil {
			return err
		}
	}
	return c.Core.Write(entry, fields)
}

func (c *hookCore) With(fields []zapcore.Field) zapcore.Core {
	return &hookCore{
		Core:  c.Core.With(fields),
		hooks: c.hooks,
	}
}

func (c *hookCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}
