package logger

import (
	"fmt"
	"strings"
)

// Format 日志格式
type Format string

const (
	// JSONFormat 结构化 JSON，适合采集
	JSONFormat Format = "json"
	// ConsoleFormat 可读文本，适合本地调试
	ConsoleFormat Format = "console"
)

// String 返回格式名称
func (f Format) String() string {
	return string(f)
}

// IsValid 检查格式是否有效
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// ParseFormat 解析格式名称，空串视为 JSON
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSONFormat, nil
	case "text":
		return ConsoleFormat, nil
	default:
		if !f.IsValid() {
			return JSONFormat, fmt.Errorf("unknown log format %q", s)
		}
		return f, nil
	}
}
