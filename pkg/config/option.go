package config

// Option 加载器选项
type Option func(*Loader)

// WithConfigFile 指定配置文件完整路径
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithConfigName 设置配置文件名（不含扩展名）
func WithConfigName(name string) Option {
	return func(l *Loader) {
		l.configName = name
	}
}

// WithConfigType 设置配置文件类型（如 yaml, json, toml）
func WithConfigType(typ string) Option {
	return func(l *Loader) {
		l.configType = typ
	}
}

// WithConfigPaths 设置配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithOptional 配置文件不存在时不报错
func WithOptional() Option {
	return func(l *Loader) {
		l.optional = true
	}
}

// WithDefaults 追加默认值（覆盖内置默认值）
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		l.defaults = defaults
	}
}

// WithEnvPrefix 设置环境变量前缀，空字符串关闭环境变量覆盖
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithAutoWatch 加载后自动监控配置文件
func WithAutoWatch(watch bool) Option {
	return func(l *Loader) {
		l.autoWatch = watch
	}
}

// WithOnChange 配置文件变更后以新的 Settings 回调
func WithOnChange(fn func(*Settings)) Option {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// WithOnError 设置错误回调
func WithOnError(fn func(error)) Option {
	return func(l *Loader) {
		l.onError = fn
	}
}
