package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// startWatch 调用方需持有锁
func (l *Loader) startWatch() {
	l.watching = true
	// viper 的 watcher 无法停止，只注册一次
	if l.registered {
		return
	}
	l.registered = true
	l.viper.OnConfigChange(func(fsnotify.Event) {
		l.mu.RLock()
		watching, onChange := l.watching, l.onChange
		var (
			settings *Settings
			err      error
		)
		if watching && onChange != nil {
			settings, err = l.decode()
		}
		l.mu.RUnlock()

		if !watching || onChange == nil {
			return
		}
		if err != nil {
			l.reportError(err)
			return
		}
		onChange(settings)
	})
	l.viper.WatchConfig()
}

// StartWatch 开始监控配置文件，重复调用无副作用
func (l *Loader) StartWatch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.viper.ConfigFileUsed() == "" {
		return ErrConfigNotFound.WithMessage("未加载配置文件，无法监控")
	}
	l.startWatch()
	return nil
}

// StopWatch 停止监控
//
// viper 不提供停止底层 fsnotify watcher 的方法，这里只让回调失效。
func (l *Loader) StopWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
}

// IsWatching 是否正在监控
func (l *Loader) IsWatching() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.watching
}

// reportError 优先使用 onError 回调，否则输出到 stderr
func (l *Loader) reportError(err error) {
	l.mu.RLock()
	onError := l.onError
	l.mu.RUnlock()

	if onError != nil {
		onError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "[config] %v\n", err)
}
