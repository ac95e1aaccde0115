package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Option 配置选项函数
type Option func(*Config)

// WithLevel 设置日志级别
func WithLevel(level Level) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithFormat 设置日志格式
func WithFormat(format Format) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithConsoleOutput 启用控制台输出
func WithConsoleOutput() Option {
	return func(c *Config) {
		c.Console = true
	}
}

// WithFileOutput 设置文件输出
func WithFileOutput(filename string) Option {
	return func(c *Config) {
		c.File = filename
	}
}

// WithRotateOutput 设置文件轮转输出
func WithRotateOutput(config *RotateConfig) Option {
	return func(c *Config) {
		c.Rotate = config
	}
}

// WithWriter 设置自定义输出
func WithWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Writer = w
	}
}

// WithSampling 设置采样配置
func WithSampling(config *SamplingConfig) Option {
	return func(c *Config) {
		c.Sampling = config
	}
}

// WithField 为每条日志附加静态字段
func WithField(key, value string) Option {
	return func(c *Config) {
		if c.Fields == nil {
			c.Fields = make(map[string]string)
		}
		c.Fields[key] = value
	}
}

// WithServiceName 记录服务名，多实例汇聚日志时区分来源
func WithServiceName(name string) Option {
	return WithField("service", name)
}

// WithEventSampling 高频事件日志采样：每秒前 initial 条全记，之后每 thereafter 条记 1 条
func WithEventSampling(initial, thereafter int) Option {
	return WithSampling(&SamplingConfig{Initial: initial, Thereafter: thereafter})
}

// WithCaller 设置是否记录调用位置
func WithCaller(enable bool) Option {
	return func(c *Config) {
		c.DisableCaller = !enable
	}
}

// WithStacktrace 设置是否记录堆栈
func WithStacktrace(enable bool) Option {
	return func(c *Config) {
		c.DisableStacktrace = !enable
	}
}

// WithEncoderConfig 设置自定义 Encoder 配置
func WithEncoderConfig(config *zapcore.EncoderConfig) Option {
	return func(c *Config) {
		c.EncoderConfig = config
	}
}

// WithHook 添加 Hook
func WithHook(hook Hook) Option {
	return func(c *Config) {
		c.Hooks = append(c.Hooks, hook)
	}
}
