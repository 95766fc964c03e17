package decision

import (
	"context"
	"math"
	"time"
)

const (
	minAdaptiveWeight = 0.5
	maxAdaptiveWeight = 1.5
	// regimeBlend is the share given to regime-specific accuracy when blending.
	regimeBlend = 0.7

	DefaultAccuracyMinSamples = 10
	DefaultRegimeMinSamples   = 10
	DefaultAccuracyLookback   = 7 * 24 * time.Hour
)

// SampleCount is a hit/miss tally.
type SampleCount struct {
	Samples int `json:"samples"`
	Correct int `json:"correct"`
}

func (s SampleCount) Accuracy() float64 {
	if s.Samples <= 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Samples)
}

// AccuracyStats is an agent's resolved-vote record, overall and per regime.
type AccuracyStats struct {
	SampleCount
	Regimes map[string]SampleCount `json:"regimes,omitempty"`
}

// AccuracySource supplies historical per-agent accuracy (normally the journal).
type AccuracySource interface {
	AgentAccuracy(ctx context.Context, since time.Time) (map[string]AccuracyStats, error)
}

// WeightFromAccuracy maps accuracy to clamp(0.5 + (acc-0.5)*2.5, 0.5, 1.5):
// 50% or worse -> 0.5, 75% -> 1.125, 90%+ -> 1.5.
func WeightFromAccuracy(accuracy float64) float64 {
	if math.IsNaN(accuracy) {
		return 1
	}
	w := 0.5 + (accuracy-0.50)*2.5
	return math.Min(maxAdaptiveWeight, math.Max(minAdaptiveWeight, w))
}

// AdaptiveConfig controls how accuracy turns into weights.
type AdaptiveConfig struct {
	MinSamples       int
	RegimeMinSamples int
	Lookback         time.Duration
}

func (c AdaptiveConfig) withDefaults() AdaptiveConfig {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultAccuracyMinSamples
	}
	if c.RegimeMinSamples <= 0 {
		c.RegimeMinSamples = DefaultRegimeMinSamples
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultAccuracyLookback
	}
	return c
}

// AgentWeight returns the adaptive weight for one agent. Agents without
// enough history stay at 1.0. With useRegime, an agent holding more than
// RegimeMinSamples samples in the current regime blends 70/30 regime/overall.
func (c AdaptiveConfig) AgentWeight(stats AccuracyStats, regime string, useRegime bool) float64 {
	c = c.withDefaults()
	if stats.Samples < c.MinSamples {
		return 1
	}
	acc := stats.Accuracy()
	if useRegime && regime != "" {
		if rs, ok := stats.Regimes[regime]; ok && rs.Samples > c.RegimeMinSamples {
			acc = regimeBlend*rs.Accuracy() + (1-regimeBlend)*acc
		}
	}
	return WeightFromAccuracy(acc)
}
