package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	DPanic(msg string, fields ...zap.Field)
	Panic(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	// 带 Context 的日志方法（自动提取 trace_id、span_id、connection_id）
	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger        // 创建子 Logger
	WithContext(ctx context.Context) Logger // 创建带 Context 字段的子 Logger
	Sync() error                            // 刷新缓冲区
	SetLevel(level Level)                   // 动态调整级别（子 Logger 共享）
	Level() Level                           // 获取当前级别
}

type logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New 创建 Logger（使用 Config）
func New(config *Config) (Logger, error) {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()
	if !config.Format.IsValid() {
		return nil, fmt.Errorf("invalid log format %q", config.Format)
	}

	writers, err := buildWriters(config)
	if err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(config.Level.toZapLevel())
	core := zapcore.NewCore(buildEncoder(config), zapcore.NewMultiWriteSyncer(writers...), level)

	if config.Sampling != nil {
		core = zapcore.NewSamplerWithOptions(core, time.Second, config.Sampling.Initial, config.Sampling.Thereafter)
	}
	if len(config.Hooks) > 0 {
		core = &hookCore{Core: core, hooks: config.Hooks}
	}

	var opts []zap.Option
	if !config.DisableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if !config.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if len(config.Fields) > 0 {
		fields := make([]zap.Field, 0, len(config.Fields))
		for k, v := range config.Fields {
			fields = append(fields, zap.String(k, v))
		}
		opts = append(opts, zap.Fields(fields...))
	}

	return &logger{zap: zap.New(core, opts...), level: level}, nil
}

// NewWithOptions 创建 Logger（使用 Options 模式）
func NewWithOptions(opts ...Option) (Logger, error) {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}
	return New(config)
}

// Default 创建默认 Logger（开发环境配置）
func Default() Logger {
	l, err := NewDevelopment()
	if err != nil {
		return NewNop()
	}
	return l
}

// NewProduction 创建生产环境 Logger
func NewProduction() (Logger, error) {
	return NewWithOptions(
		WithLevel(InfoLevel),
		WithFormat(JSONFormat),
		WithConsoleOutput(),
		WithCaller(false),
	)
}

// NewDevelopment 创建开发环境 Logger
func NewDevelopment() (Logger, error) {
	return NewWithOptions(
		WithLevel(DebugLevel),
		WithFormat(ConsoleFormat),
		WithConsoleOutput(),
	)
}

// NewNop 创建丢弃所有输出的 Logger
func NewNop() Logger {
	return &logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func buildEncoder(config *Config) zapcore.Encoder {
	encoderConfig := config.EncoderConfig
	if encoderConfig == nil {
		encoderConfig = &zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	if config.Format == ConsoleFormat {
		return zapcore.NewConsoleEncoder(*encoderConfig)
	}
	return zapcore.NewJSONEncoder(*encoderConfig)
}

func buildWriters(config *Config) ([]zapcore.WriteSyncer, error) {
	var writers []zapcore.WriteSyncer

	if config.Console {
		writers = append(writers, zapcore.Lock(os.Stdout))
	}
	if config.Writer != nil {
		writers = append(writers, zapcore.AddSync(config.Writer))
	}
	if config.File != "" {
		w, _, err := zap.Open(config.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.File, err)
		}
		writers = append(writers, w)
	}
	if r := config.Rotate; r != nil {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   r.Filename,
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			LocalTime:  r.LocalTime,
			Compress:   r.Compress,
		}))
	}

	return writers, nil
}

func (l *logger) Debug(msg string, fields ...zap.Field)  { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)   { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)   { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field)  { l.zap.Error(msg, fields...) }
func (l *logger) DPanic(msg string, fields ...zap.Field) { l.zap.DPanic(msg, fields...) }
func (l *logger) Panic(msg string, fields ...zap.Field)  { l.zap.Panic(msg, fields...) }
func (l *logger) Fatal(msg string, fields ...zap.Field)  { l.zap.Fatal(msg, fields...) }

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, contextFields(ctx, fields)...)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, contextFields(ctx, fields)...)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, contextFields(ctx, fields)...)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, contextFields(ctx, fields)...)
}

// With 创建子 Logger
func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{zap: l.zap.With(fields...), level: l.level}
}

// WithContext 创建带 Context 字段的子 Logger
func (l *logger) WithContext(ctx context.Context) Logger {
	return l.With(contextFields(ctx, nil)...)
}

// Sync 刷新缓冲区
func (l *logger) Sync() error {
	return l.zap.Sync()
}

// SetLevel 动态调整级别
func (l *logger) SetLevel(level Level) {
	l.level.SetLevel(level.toZapLevel())
}

// Level 获取当前级别
func (l *logger) Level() Level {
	return fromZapLevel(l.level.Level())
}
