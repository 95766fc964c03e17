package config

import (
	"fmt"

	"polyshadow/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch 监听主配置文件，变更后重新 Load 并回调 fn；非法修改只记录日志，沿用旧配置。
func Watch(path string, fn func(*Config)) error {
	if fn == nil {
		return fmt.Errorf("config watch requires a callback")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config failed (%s): %w", path, err)
	}
	v.OnConfigChange(reloadOnChange(path, fn))
	v.WatchConfig()
	return nil
}

func reloadOnChange(path string, fn func(*Config)) func(fsnotify.Event) {
	return func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("config reload ignored (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded from %s", evt.Name)
		fn(cfg)
	}
}
