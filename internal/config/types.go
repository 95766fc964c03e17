package config

import (
	"strings"
	"time"
)

// Config 是 polyshadow 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Journal   JournalConfig   `toml:"journal"`
	Snapshots SnapshotsConfig `toml:"snapshots"`
	Engine    EngineConfig    `toml:"engine"`
	Shadow    ShadowConfig    `toml:"shadow"`
	Resolver  ResolverConfig  `toml:"resolver"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// JournalConfig 交易日志库（gorm + sqlite）。
type JournalConfig struct {
	Path          string `toml:"path"`
	BusyRetries   int    `toml:"busy_retries"`
	BusyBackoffMS int    `toml:"busy_backoff_ms"`
	MaxOpenConns  int    `toml:"max_open_conns"`
}

func (j JournalConfig) BusyBackoff() time.Duration {
	return time.Duration(j.BusyBackoffMS) * time.Millisecond
}

// SnapshotsConfig 行情快照库，同时作为 resolver 的结果来源。
type SnapshotsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// RetentionHours 为 0 时不清理。
	RetentionHours int `toml:"retention_hours"`
}

func (s SnapshotsConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

// EngineConfig 为所有策略共享的决策引擎参数；阈值类参数由策略覆盖。
type EngineConfig struct {
	MinAgents               int      `toml:"min_agents"`
	MinIndividualConfidence float64  `toml:"min_individual_confidence"`
	AgentTimeoutMS          int      `toml:"agent_timeout_ms"`
	BalanceWindow           int      `toml:"balance_window"`
	BiasThreshold           float64  `toml:"bias_threshold"`
	AccuracyMinSamples      int      `toml:"accuracy_min_samples"`
	RegimeMinSamples        int      `toml:"regime_min_samples"`
	AccuracyLookbackHours   int      `toml:"accuracy_lookback_hours"`
	BreakerThreshold        int      `toml:"breaker_threshold"`
	BreakerCooldownSeconds  int      `toml:"breaker_cooldown_seconds"`
	ContextAgents           []string `toml:"context_agents"`
	ContextVetoes           []string `toml:"context_vetoes"`
}

func (e EngineConfig) AgentTimeout() time.Duration {
	return time.Duration(e.AgentTimeoutMS) * time.Millisecond
}

func (e EngineConfig) AccuracyLookback() time.Duration {
	return time.Duration(e.AccuracyLookbackHours) * time.Hour
}

func (e EngineConfig) BreakerCooldown() time.Duration {
	return time.Duration(e.BreakerCooldownSeconds) * time.Second
}

type ShadowConfig struct {
	InitialBalance       float64 `toml:"initial_balance"`
	PositionSizeUSD      float64 `toml:"position_size_usd"`
	DefaultEntryPrice    float64 `toml:"default_entry_price"`
	RestoreMaxAgeSeconds int     `toml:"restore_max_age_seconds"`
	// CatalogPath 为空时使用内置策略预设。
	CatalogPath string `toml:"catalog_path"`
}

func (s ShadowConfig) RestoreMaxAge() time.Duration {
	return time.Duration(s.RestoreMaxAgeSeconds) * time.Second
}

type ResolverConfig struct {
	Enabled        bool   `toml:"enabled"`
	Epoch          string `toml:"epoch"`
	OffsetSeconds  int    `toml:"offset_seconds"`
	LookbackEpochs int    `toml:"lookback_epochs"`

	epochDuration time.Duration
}

// EpochDuration 返回校验后解析好的 epoch 长度。
func (r ResolverConfig) EpochDuration() time.Duration {
	return r.epochDuration
}

func (r ResolverConfig) Offset() time.Duration {
	return time.Duration(r.OffsetSeconds) * time.Second
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
