package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level  Level  // 日志级别（默认 InfoLevel）
	Format Format // 日志格式（json/console，默认 json）

	// 输出配置
	Console bool          // 是否输出到控制台
	File    string        // 文件路径（空则不输出到文件）
	Rotate  *RotateConfig // 轮转配置（nil 则不轮转）
	Writer  io.Writer     // 自定义输出（测试或转发场景）

	Sampling *SamplingConfig   // 采样配置（nil 则不采样）
	Fields   map[string]string // 每条日志附带的静态字段（如 service）

	DisableCaller     bool // 不记录调用位置
	DisableStacktrace bool // 不记录 Error 及以上级别的堆栈

	EncoderConfig *zapcore.EncoderConfig // 自定义 Encoder 配置
	Hooks         []Hook                 // Hook 列表
}

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Filename   string // 日志文件路径
	MaxSize    int    // 单文件最大大小（MB，默认 100MB）
	MaxAge     int    // 文件保留天数（默认 30 天）
	MaxBackups int    // 最多保留文件数（默认 10 个）
	LocalTime  bool   // 使用本地时间
	Compress   bool   // 是否压缩
}

// SamplingConfig 采样配置
type SamplingConfig struct {
	Initial    int // 每秒前 N 条日志必定记录
	Thereafter int // 之后每 M 条记录 1 条
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	// 未配置任何输出时回落到控制台
	if !c.Console && c.File == "" && c.Rotate == nil && c.Writer == nil {
		c.Console = true
	}
	if c.Rotate != nil {
		c.Rotate.setDefaults()
	}
	if c.Sampling != nil {
		c.Sampling.setDefaults()
	}
}

func (r *RotateConfig) setDefaults() {
	if r.MaxSize == 0 {
		r.MaxSize = 100
	}
	if r.MaxAge == 0 {
		r.MaxAge = 30
	}
	if r.MaxBackups == 0 {
		r.MaxBackups = 10
	}
}

func (s *SamplingConfig) setDefaults() {
	if s.Initial == 0 {
		s.Initial = 100
	}
	if s.Thereafter == 0 {
		s.Thereafter = 100
	}
}
