package strategy

import (
	"fmt"
	"math"
	"strings"

	"polyshadow/internal/decision"
)

// Config 描述一个命名策略：阈值与每个 agent 的权重乘数。注册后不可变。
type Config struct {
	Name                    string             `yaml:"name" json:"name"`
	Description             string             `yaml:"description" json:"description,omitempty"`
	ConsensusThreshold      float64            `yaml:"consensus_threshold" json:"consensus_threshold"`
	MinConfidence           float64            `yaml:"min_confidence" json:"min_confidence"`
	MinIndividualConfidence float64            `yaml:"min_individual_confidence" json:"min_individual_confidence"`
	AgentWeights            map[string]float64 `yaml:"agent_weights" json:"agent_weights,omitempty"`
	AdaptiveWeights         bool               `yaml:"adaptive_weights" json:"adaptive_weights"`
	RegimeAdjustment        bool               `yaml:"regime_adjustment" json:"regime_adjustment"`
	IsLive                  bool               `yaml:"is_live" json:"is_live"`
	// PositionSize overrides the fixed stake when > 0.
	PositionSize float64 `yaml:"position_size" json:"position_size,omitempty"`
}

// Weight returns the multiplier for agent, 1.0 when unset.
func (c Config) Weight(agent string) float64 {
	if w, ok := c.AgentWeights[agent]; ok {
		return w
	}
	return 1
}

// Validate checks ranges that the schema cannot express for built-in presets.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("strategy name is required")
	}
	for field, v := range map[string]float64{
		"consensus_threshold":       c.ConsensusThreshold,
		"min_confidence":            c.MinConfidence,
		"min_individual_confidence": c.MinIndividualConfidence,
	} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("strategy %s: %s must be >= 0, got %v", c.Name, field, v)
		}
	}
	if c.MinConfidence > 1 || c.MinIndividualConfidence > 1 {
		return fmt.Errorf("strategy %s: confidence thresholds must be <= 1", c.Name)
	}
	for agent, w := range c.AgentWeights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("strategy %s: weight for %s is not finite", c.Name, agent)
		}
	}
	if c.PositionSize < 0 {
		return fmt.Errorf("strategy %s: position_size must be >= 0", c.Name)
	}
	return nil
}

// Clone deep-copies the weight map so the catalog cannot be mutated through a
// returned value.
func (c Config) Clone() Config {
	if c.AgentWeights != nil {
		w := make(map[string]float64, len(c.AgentWeights))
		for k, v := range c.AgentWeights {
			w[k] = v
		}
		c.AgentWeights = w
	}
	return c
}

// EngineConfig overlays the strategy's policy onto base, which carries the
// process-wide engine settings (timeouts, adaptive sample sizes, tracker).
func (c Config) EngineConfig(base decision.EngineConfig) decision.EngineConfig {
	cc := c.Clone()
	base.Name = cc.Name
	base.ConsensusThreshold = cc.ConsensusThreshold
	base.MinConfidence = cc.MinConfidence
	if cc.MinIndividualConfidence > 0 {
		base.MinIndividualConfidence = cc.MinIndividualConfidence
	}
	base.AgentWeights = cc.AgentWeights
	base.AdaptiveWeights = cc.AdaptiveWeights
	base.RegimeAdjustment = cc.RegimeAdjustment
	return base
}
