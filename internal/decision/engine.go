package decision

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"polyshadow/internal/logger"
	"polyshadow/internal/market"
	"polyshadow/internal/pkg/circuit"

	"github.com/google/uuid"
)

var engineLog = logger.With("engine")

const DefaultAgentTimeout = 5 * time.Second

// EngineConfig is the policy an engine applies. It is usually derived from a
// strategy.Config.
type EngineConfig struct {
	Name                    string
	ConsensusThreshold      float64
	MinConfidence           float64
	MinIndividualConfidence float64
	MinAgents               int
	// AgentWeights multiplies each agent's weight: 0 disables the agent, a
	// negative value inverts its Up/Down vote and weighs it by the magnitude.
	AgentWeights     map[string]float64
	AdaptiveWeights  bool
	RegimeAdjustment bool
	Adaptive         AdaptiveConfig
	AgentTimeout     time.Duration
	BalanceWindow    int
	BiasThreshold    float64
}

// EngineDeps are the collaborators shared across engines.
type EngineDeps struct {
	Agents     []Agent
	VetoAgents []VetoAgent
	Accuracy   AccuracySource
	Breakers   *circuit.Set
	Now        func() time.Time
}

// DecisionEngine runs collection, validation, weighting, aggregation and the
// four gates for one (asset, epoch). Adaptive weights and the balance
// tracker are the only state carried across calls.
type DecisionEngine struct {
	cfg        EngineConfig
	agents     []Agent
	vetoers    []VetoAgent
	aggregator VoteAggregator
	accuracy   AccuracySource
	breakers   *circuit.Set
	tracker    *DirectionalBalanceTracker
	now        func() time.Time

	mu          sync.Mutex
	lastWeights map[string]float64
	// asset -> newest epoch already counted by the tracker
	recorded map[string]int64
}

func NewDecisionEngine(cfg EngineConfig, deps EngineDeps) *DecisionEngine {
	if cfg.MinAgents <= 0 {
		cfg.MinAgents = DefaultMinAgents
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = DefaultAgentTimeout
	}
	cfg.Adaptive = cfg.Adaptive.withDefaults()
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	e := &DecisionEngine{
		cfg:        cfg,
		aggregator: NewVoteAggregator(cfg.MinIndividualConfidence),
		accuracy:   deps.Accuracy,
		breakers:   deps.Breakers,
		tracker:    NewDirectionalBalanceTracker(cfg.BalanceWindow, cfg.BiasThreshold),
		now:        now,
		recorded:   make(map[string]int64),
	}
	seenVeto := make(map[string]bool)
	for _, v := range deps.VetoAgents {
		if v == nil || seenVeto[v.Name()] {
			continue
		}
		seenVeto[v.Name()] = true
		e.vetoers = append(e.vetoers, v)
	}
	for _, a := range deps.Agents {
		if a == nil {
			continue
		}
		e.agents = append(e.agents, a)
		if v, ok := a.(VetoAgent); ok && !seenVeto[v.Name()] {
			seenVeto[v.Name()] = true
			e.vetoers = append(e.vetoers, v)
		}
	}
	return e
}

func (e *DecisionEngine) Config() EngineConfig { return e.cfg }

func (e *DecisionEngine) Tracker() *DirectionalBalanceTracker { return e.tracker }

// LastWeights returns the effective weights used by the most recent aggregation.
func (e *DecisionEngine) LastWeights() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.lastWeights))
	for k, v := range e.lastWeights {
		out[k] = v
	}
	return out
}

// Decide never returns an error: every "no trade" path is a TradeDecision
// with ShouldTrade=false and a reason.
func (e *DecisionEngine) Decide(ctx context.Context, asset string, epoch int64, mctx market.Context) TradeDecision {
	if ctx == nil {
		ctx = context.Background()
	}
	base := TradeDecision{
		TraceID:   uuid.NewString(),
		Asset:     asset,
		Epoch:     epoch,
		Timestamp: e.now().UTC(),
	}

	votes := e.collectVotes(ctx, asset, epoch, mctx)
	base.Votes = votes
	if len(votes) == 0 {
		return e.reject(base, "no votes collected")
	}
	if ok, msg := ValidateVotes(votes, e.cfg.MinAgents); !ok {
		return e.reject(base, "vote validation failed: "+msg)
	}

	weights := e.effectiveWeights(ctx, votes, mctx.Regime())
	base.Weights = weights
	pred := e.aggregator.Aggregate(votes, weights)
	base.Prediction = &pred
	base.WeightedScore = pred.WeightedScore
	base.Confidence = pred.Confidence

	if pred.WeightedScore < e.cfg.ConsensusThreshold {
		return e.reject(base, fmt.Sprintf("consensus not reached: score %.3f < threshold %.3f", pred.WeightedScore, e.cfg.ConsensusThreshold))
	}
	if pred.Confidence < e.cfg.MinConfidence {
		return e.reject(base, fmt.Sprintf("confidence too low: %.3f < %.3f", pred.Confidence, e.cfg.MinConfidence))
	}
	if pred.Direction == DirectionNeutral {
		return e.reject(base, "no directional consensus (neutral)")
	}

	vetoCtx := mctx.Merge(map[string]any{
		"direction":      string(pred.Direction),
		"weighted_score": pred.WeightedScore,
		"confidence":     pred.Confidence,
	})
	if vetoed, reasons := CheckVetoes(ctx, e.vetoers, asset, vetoCtx); vetoed {
		base.Vetoed = true
		base.VetoReasons = reasons
		return e.reject(base, "vetoed: "+strings.Join(reasons, "; "))
	}

	base.ShouldTrade = true
	base.Direction = pred.Direction
	base.Reason = approvalReason(pred, e.cfg.ConsensusThreshold)
	if !e.markRecorded(asset, epoch) {
		return base
	}
	e.tracker.Record(pred.Direction)
	if e.tracker.HasBias() {
		st := e.tracker.Stats()
		engineLog.Warnf("[%s] directional bias: %s %.0f%% of last %d trades", e.cfg.Name, st.Majority, st.MajorityRatio*100, st.Window)
	}
	return base
}

// markRecorded reports whether (asset, epoch) is newer than anything the
// tracker has counted for asset, claiming it if so. Repeated ticks of one
// epoch count once.
func (e *DecisionEngine) markRecorded(asset string, epoch int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.recorded[asset]; ok && epoch <= last {
		return false
	}
	e.recorded[asset] = epoch
	return true
}

func (e *DecisionEngine) reject(d TradeDecision, reason string) TradeDecision {
	d.ShouldTrade = false
	d.Direction = ""
	d.Reason = reason
	engineLog.Debugf("[%s] %s@%d no trade: %s", e.cfg.Name, d.Asset, d.Epoch, reason)
	return d
}

func (e *DecisionEngine) multiplier(agent string) float64 {
	if e.cfg.AgentWeights == nil {
		return 1
	}
	if m, ok := e.cfg.AgentWeights[agent]; ok {
		return m
	}
	return 1
}

// effectiveWeights = adaptive weight x |strategy multiplier|.
func (e *DecisionEngine) effectiveWeights(ctx context.Context, votes []Vote, regime string) map[string]float64 {
	var stats map[string]AccuracyStats
	if e.cfg.AdaptiveWeights && e.accuracy != nil {
		since := e.now().Add(-e.cfg.Adaptive.Lookback)
		s, err := e.accuracy.AgentAccuracy(ctx, since)
		if err != nil {
			engineLog.Warnf("[%s] adaptive weights unavailable, using neutral weights: %v", e.cfg.Name, err)
		} else {
			stats = s
		}
	}
	weights := make(map[string]float64, len(votes))
	for _, v := range votes {
		w := 1.0
		if stats != nil {
			w = e.cfg.Adaptive.AgentWeight(stats[v.AgentName()], regime, e.cfg.RegimeAdjustment)
		}
		weights[v.AgentName()] = w * math.Abs(e.multiplier(v.AgentName()))
	}
	e.mu.Lock()
	e.lastWeights = weights
	e.mu.Unlock()
	return weights
}

func approvalReason(pred AggregatePrediction, threshold float64) string {
	agreeing := make([]string, 0, len(pred.Votes))
	dissent := make([]string, 0, len(pred.Votes))
	for _, v := range pred.Votes {
		entry := fmt.Sprintf("%s=%s(%.2f)", v.AgentName(), v.Direction(), v.Confidence())
		if v.Direction() == pred.Direction {
			agreeing = append(agreeing, entry)
		} else {
			dissent = append(dissent, entry)
		}
	}
	sort.Strings(agreeing)
	sort.Strings(dissent)
	winners := len(agreeing)
	reason := fmt.Sprintf("%s consensus: %d/%d agents agree (score %.3f >= %.3f, confidence %.2f) [%s]",
		pred.Direction, winners, pred.TotalAgents, pred.WeightedScore, threshold, pred.Confidence, strings.Join(agreeing, ", "))
	if len(dissent) > 0 {
		reason += " dissent [" + strings.Join(dissent, ", ") + "]"
	}
	return reason
}
