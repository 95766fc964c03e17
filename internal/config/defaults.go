package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppHTTPAddr        = ":9992"
	defaultJournalPath        = "data/journal.db"
	defaultJournalBusyRetries = 5
	defaultJournalBusyBackoff = 500
	defaultJournalMaxConns    = 2
	defaultSnapshotsPath      = "data/snapshots.db"
	defaultSnapshotsRetention = 168
	defaultMinAgents          = 2
	defaultMinIndividualConf  = 0.30
	defaultAgentTimeoutMS     = 5000
	defaultBalanceWindow      = 20
	defaultBiasThreshold      = 0.70
	defaultAccuracyMinSamples = 10
	defaultRegimeMinSamples   = 10
	defaultAccuracyLookback   = 168
	defaultBreakerThreshold   = 3
	defaultBreakerCooldown    = 300
	defaultInitialBalance     = 1000
	defaultPositionSizeUSD    = 10
	defaultEntryPrice         = 0.5
	defaultRestoreMaxAge      = 7200
	defaultResolverEpoch      = "15m"
	defaultResolverOffset     = 30
	defaultLookbackEpochs     = 8
)

// applyDefaults 为所有子配置应用默认值；显式写在文件里的键（包括零值）不会被覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Snapshots.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Shadow.applyDefaults(keys)
	c.Resolver.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("journal.path", &j.Path, defaultJournalPath),
		intFieldDefault("journal.busy_retries", &j.BusyRetries, defaultJournalBusyRetries),
		intFieldDefault("journal.busy_backoff_ms", &j.BusyBackoffMS, defaultJournalBusyBackoff),
		intFieldDefault("journal.max_open_conns", &j.MaxOpenConns, defaultJournalMaxConns),
	)
}

func (s *SnapshotsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("snapshots.enabled", &s.Enabled, true),
		stringFieldDefault("snapshots.path", &s.Path, defaultSnapshotsPath),
		intFieldDefault("snapshots.retention_hours", &s.RetentionHours, defaultSnapshotsRetention),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("engine.min_agents", &e.MinAgents, defaultMinAgents),
		floatFieldDefault("engine.min_individual_confidence", &e.MinIndividualConfidence, defaultMinIndividualConf),
		intFieldDefault("engine.agent_timeout_ms", &e.AgentTimeoutMS, defaultAgentTimeoutMS),
		intFieldDefault("engine.balance_window", &e.BalanceWindow, defaultBalanceWindow),
		floatFieldDefault("engine.bias_threshold", &e.BiasThreshold, defaultBiasThreshold),
		intFieldDefault("engine.accuracy_min_samples", &e.AccuracyMinSamples, defaultAccuracyMinSamples),
		intFieldDefault("engine.regime_min_samples", &e.RegimeMinSamples, defaultRegimeMinSamples),
		intFieldDefault("engine.accuracy_lookback_hours", &e.AccuracyLookbackHours, defaultAccuracyLookback),
		intFieldDefault("engine.breaker_threshold", &e.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("engine.breaker_cooldown_seconds", &e.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	e.ContextAgents = normalizeNameList(e.ContextAgents)
	e.ContextVetoes = normalizeNameList(e.ContextVetoes)
}

func (s *ShadowConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("shadow.initial_balance", &s.InitialBalance, defaultInitialBalance),
		floatFieldDefault("shadow.position_size_usd", &s.PositionSizeUSD, defaultPositionSizeUSD),
		floatFieldDefault("shadow.default_entry_price", &s.DefaultEntryPrice, defaultEntryPrice),
		intFieldDefault("shadow.restore_max_age_seconds", &s.RestoreMaxAgeSeconds, defaultRestoreMaxAge),
	)
	s.CatalogPath = strings.TrimSpace(s.CatalogPath)
}

func (r *ResolverConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("resolver.enabled", &r.Enabled, true),
		stringFieldDefault("resolver.epoch", &r.Epoch, defaultResolverEpoch),
		intFieldDefault("resolver.offset_seconds", &r.OffsetSeconds, defaultResolverOffset),
		intFieldDefault("resolver.lookback_epochs", &r.LookbackEpochs, defaultLookbackEpochs),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func normalizeNameList(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
