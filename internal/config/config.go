package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath 指定配置文件路径的环境变量。
	EnvConfigPath     = "POLYSHADOW_CONFIG"
	DefaultConfigPath = "configs/config.yaml"
)

// ResolvePath 返回 flag 值、环境变量或默认路径中第一个非空者。
func ResolvePath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load 读取配置文件（含 include 链），应用默认值并校验。
// include 中的文件先合并，主文件最后合并，因此主文件的键优先。
func Load(path string) (*Config, error) {
	files, err := includeChain(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		part, err := readFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
		if err := v.MergeConfigMap(part.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	for _, key := range v.AllKeys() {
		setKeys.mark(key)
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// includeChain 按深度优先顺序展开 include，返回待合并的文件列表（被包含者在前）。
func includeChain(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var (
		ordered  []string
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
		walk     func(string) error
	)
	walk = func(file string) error {
		file = filepath.Clean(file)
		if visiting[file] {
			return fmt.Errorf("include cycle detected: %s", file)
		}
		if done[file] {
			return nil
		}
		visiting[file] = true
		part, err := readFile(file)
		if err != nil {
			return fmt.Errorf("parsing include failed (%s): %w", file, err)
		}
		for _, inc := range part.GetStringSlice("include") {
			inc = strings.TrimSpace(inc)
			if inc == "" {
				continue
			}
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(file), inc)
			}
			if err := walk(inc); err != nil {
				return err
			}
		}
		delete(visiting, file)
		done[file] = true
		ordered = append(ordered, file)
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return ordered, nil
}
