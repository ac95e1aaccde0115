package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀，EVENTUM_SERVER_ADDR 覆盖 server.addr
const DefaultEnvPrefix = "EVENTUM"

// Loader 配置加载器
type Loader struct {
	viper *viper.Viper
	mu    sync.RWMutex

	configFile  string   // 配置文件完整路径
	configName  string   // 配置文件名（不含扩展名）
	configType  string   // 配置文件类型
	configPaths []string // 配置文件搜索路径
	optional    bool     // 配置文件不存在时仅使用默认值与环境变量

	envPrefix string
	defaults  map[string]any

	autoWatch  bool
	watching   bool
	registered bool
	onChange   func(*Settings)
	onError    func(error)
}

// New 创建配置加载器
func New(opts ...Option) *Loader {
	l := &Loader{
		viper:     viper.New(),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 读取配置并解析为 Settings
func (l *Loader) Load() (*Settings, error) {
	l.mu.Lock()

	for k, v := range defaultValues() {
		l.viper.SetDefault(k, v)
	}
	for k, v := range l.defaults {
		l.viper.SetDefault(k, v)
	}

	if l.envPrefix != "" {
		l.viper.SetEnvPrefix(l.envPrefix)
		l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		l.viper.AutomaticEnv()
	}

	if l.configFile != "" {
		l.viper.SetConfigFile(l.configFile)
	} else {
		if l.configName != "" {
			l.viper.SetConfigName(l.configName)
		}
		if l.configType != "" {
			l.viper.SetConfigType(l.configType)
		}
		for _, path := range l.configPaths {
			l.viper.AddConfigPath(path)
		}
	}

	hasFile := l.configFile != "" || l.configName != ""
	if hasFile {
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound) && l.optional:
			case errors.As(err, &notFound):
				l.mu.Unlock()
				return nil, fmt.Errorf("%w: %w", ErrConfigNotFound, err)
			default:
				l.mu.Unlock()
				return nil, fmt.Errorf("%w: %w", ErrConfigReadFailed, err)
			}
		}
	}

	settings, err := l.decode()
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	if l.autoWatch && l.viper.ConfigFileUsed() != "" {
		l.startWatch()
	}
	l.mu.Unlock()

	return settings, nil
}

// decode 调用方需持有锁
func (l *Loader) decode() (*Settings, error) {
	var s Settings
	if err := l.viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigDecodeFailed, err)
	}
	return &s, nil
}

// Get 泛型获取配置值，类型不匹配时返回零值
func Get[T any](l *Loader, key string) T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if v, ok := l.viper.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetString(key)
}

// GetInt 获取整数配置值
func (l *Loader) GetInt(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetInt(key)
}

// GetBool 获取布尔配置值
func (l *Loader) GetBool(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetBool(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetDuration(key)
}

// GetStringSlice 获取字符串切片配置值
func (l *Loader) GetStringSlice(key string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetStringSlice(key)
}

// Set 设置配置值
func (l *Loader) Set(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viper.Set(key, value)
}

// IsSet 检查配置键是否存在
func (l *Loader) IsSet(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.IsSet(key)
}

// UnmarshalKey 将指定 key 的配置反序列化到结构体（用于应用自定义段）
func (l *Loader) UnmarshalKey(key string, rawVal any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.UnmarshalKey(key, rawVal)
}

// Settings 重新解析当前配置
func (l *Loader) Settings() (*Settings, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.decode()
}

// ConfigFileUsed 实际读取的配置文件
func (l *Loader) ConfigFileUsed() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.ConfigFileUsed()
}

// Close 停止监控
func (l *Loader) Close() {
	l.StopWatch()
}
