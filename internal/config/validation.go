package config

import (
	"fmt"
	"strings"

	"polyshadow/internal/logger"
	"polyshadow/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Journal.validate(); err != nil {
		return err
	}
	if err := c.Snapshots.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Shadow.validate(); err != nil {
		return err
	}
	if err := c.Resolver.validate(c.Snapshots); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	if !logger.ValidLevel(a.LogLevel) {
		return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", a.LogLevel)
	}
	return nil
}

func (j *JournalConfig) validate() error {
	if strings.TrimSpace(j.Path) == "" {
		return fmt.Errorf("journal.path is required")
	}
	if j.BusyRetries < 1 {
		return fmt.Errorf("journal.busy_retries must be >= 1")
	}
	if j.BusyBackoffMS < 1 {
		return fmt.Errorf("journal.busy_backoff_ms must be >= 1")
	}
	if j.MaxOpenConns < 1 {
		return fmt.Errorf("journal.max_open_conns must be >= 1")
	}
	return nil
}

func (s *SnapshotsConfig) validate() error {
	if s.Enabled && strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("snapshots.path is required when snapshots are enabled")
	}
	if s.RetentionHours < 0 {
		return fmt.Errorf("snapshots.retention_hours must be >= 0")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.MinAgents < 1 {
		return fmt.Errorf("engine.min_agents must be >= 1")
	}
	if e.MinIndividualConfidence < 0 || e.MinIndividualConfidence > 1 {
		return fmt.Errorf("engine.min_individual_confidence must be within [0,1]")
	}
	if e.AgentTimeoutMS <= 0 {
		return fmt.Errorf("engine.agent_timeout_ms must be > 0")
	}
	if e.BalanceWindow < 1 {
		return fmt.Errorf("engine.balance_window must be >= 1")
	}
	if e.BiasThreshold <= 0.5 || e.BiasThreshold > 1 {
		return fmt.Errorf("engine.bias_threshold must be within (0.5,1]")
	}
	if e.AccuracyMinSamples < 1 || e.RegimeMinSamples < 1 {
		return fmt.Errorf("engine accuracy sample minimums must be >= 1")
	}
	if e.AccuracyLookbackHours <= 0 {
		return fmt.Errorf("engine.accuracy_lookback_hours must be > 0")
	}
	if e.BreakerThreshold < 0 || e.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("engine breaker settings must be >= 0")
	}
	seen := make(map[string]bool, len(e.ContextAgents))
	for _, name := range e.ContextAgents {
		seen[name] = true
	}
	for _, name := range e.ContextVetoes {
		if seen[name] {
			return fmt.Errorf("engine: %q is configured as both a context agent and a context veto", name)
		}
	}
	return nil
}

func (s *ShadowConfig) validate() error {
	if s.InitialBalance <= 0 {
		return fmt.Errorf("shadow.initial_balance must be > 0")
	}
	if s.PositionSizeUSD <= 0 {
		return fmt.Errorf("shadow.position_size_usd must be > 0")
	}
	if s.PositionSizeUSD > s.InitialBalance {
		return fmt.Errorf("shadow.position_size_usd (%.2f) exceeds initial_balance (%.2f)", s.PositionSizeUSD, s.InitialBalance)
	}
	if s.DefaultEntryPrice <= 0 || s.DefaultEntryPrice >= 1 {
		return fmt.Errorf("shadow.default_entry_price must be within (0,1)")
	}
	if s.RestoreMaxAgeSeconds <= 0 {
		return fmt.Errorf("shadow.restore_max_age_seconds must be > 0")
	}
	return nil
}

func (r *ResolverConfig) validate(snaps SnapshotsConfig) error {
	dur, ok := scheduler.ParseIntervalDuration(r.Epoch)
	if !ok {
		return fmt.Errorf("resolver.epoch %q is not a valid interval (e.g. 5m, 15m, 1h)", r.Epoch)
	}
	r.epochDuration = dur
	if r.OffsetSeconds < 0 {
		return fmt.Errorf("resolver.offset_seconds must be >= 0")
	}
	if r.LookbackEpochs < 1 {
		return fmt.Errorf("resolver.lookback_epochs must be >= 1")
	}
	if r.Enabled && !snaps.Enabled {
		return fmt.Errorf("resolver.enabled requires snapshots.enabled (the resolver reads outcomes from snapshots)")
	}
	return nil
}
