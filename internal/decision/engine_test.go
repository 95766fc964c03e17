package decision

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"polyshadow/internal/market"
	"polyshadow/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedAgent(name string, dir Direction, confidence, quality float64) Agent {
	return AgentFunc{AgentName: name, Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
		return NewVote(name, dir, confidence, quality, "fixture", nil)
	}}
}

func referenceAgents() []Agent {
	return []Agent{
		fixedAgent("a", DirectionUp, 0.8, 0.9),
		fixedAgent("b", DirectionUp, 0.7, 0.8),
		fixedAgent("c", DirectionDown, 0.6, 0.7),
		fixedAgent("d", DirectionUp, 0.2, 0.2),
	}
}

func referenceConfig() EngineConfig {
	return EngineConfig{
		Name:                    "test",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AgentTimeout:            time.Second,
	}
}

type MockAccuracy struct {
	mock.Mock
}

func (m *MockAccuracy) AgentAccuracy(ctx context.Context, since time.Time) (map[string]AccuracyStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]AccuracyStats), args.Error(1)
}

func TestDecide_ReferenceScenarioTrades(t *testing.T) {
	e := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: referenceAgents()})
	d := e.Decide(context.Background(), "BTC", 1700000100, market.Context{})

	require.True(t, d.ShouldTrade, d.Reason)
	assert.Equal(t, DirectionUp, d.Direction)
	assert.InDelta(t, 1.28, d.WeightedScore, 1e-9)
	assert.InDelta(t, 0.75, d.Confidence, 1e-9)
	assert.False(t, d.Vetoed)
	assert.NotEmpty(t, d.TraceID)
	assert.Equal(t, "BTC", d.Asset)
	assert.Equal(t, int64(1700000100), d.Epoch)
	assert.Contains(t, d.Reason, "2/3 agents agree")
	assert.Len(t, d.Votes, 4)
	assert.Equal(t, 1, e.Tracker().Stats().Recorded)
}

func TestDecide_TrackerCountsEachEpochOnce(t *testing.T) {
	e := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: referenceAgents()})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d := e.Decide(ctx, "BTC", 1700000100, market.Context{})
		require.True(t, d.ShouldTrade, d.Reason)
	}
	assert.Equal(t, 1, e.Tracker().Stats().Recorded)

	e.Decide(ctx, "ETH", 1700000100, market.Context{})
	e.Decide(ctx, "BTC", 1700001000, market.Context{})
	e.Decide(ctx, "BTC", 1700000100, market.Context{})
	st := e.Tracker().Stats()
	assert.Equal(t, 3, st.Recorded)
	assert.Equal(t, 3, st.Up)
}

func TestDecide_Gates(t *testing.T) {
	t.Run("consensus", func(t *testing.T) {
		cfg := referenceConfig()
		cfg.ConsensusThreshold = 1.5
		d := NewDecisionEngine(cfg, EngineDeps{Agents: referenceAgents()}).Decide(context.Background(), "BTC", 1, nil)
		assert.False(t, d.ShouldTrade)
		assert.Contains(t, d.Reason, "1.280 < threshold 1.500")
		assert.Empty(t, d.Direction)
		require.NotNil(t, d.Prediction)
	})
	t.Run("confidence", func(t *testing.T) {
		cfg := referenceConfig()
		cfg.MinConfidence = 0.80
		d := NewDecisionEngine(cfg, EngineDeps{Agents: referenceAgents()}).Decide(context.Background(), "BTC", 1, nil)
		assert.False(t, d.ShouldTrade)
		assert.Contains(t, d.Reason, "confidence too low")
	})
	t.Run("neutral", func(t *testing.T) {
		cfg := referenceConfig()
		cfg.ConsensusThreshold = 0
		cfg.MinConfidence = 0
		agents := []Agent{
			fixedAgent("a", DirectionUp, 0.5, 0.8),
			fixedAgent("b", DirectionDown, 0.8, 0.5),
		}
		d := NewDecisionEngine(cfg, EngineDeps{Agents: agents}).Decide(context.Background(), "BTC", 1, nil)
		assert.False(t, d.ShouldTrade)
		assert.Contains(t, d.Reason, "neutral")
	})
	t.Run("veto", func(t *testing.T) {
		var seen market.Context
		vetoes := []VetoAgent{
			VetoFunc{AgentName: "risk", Fn: func(_ context.Context, _ string, mctx market.Context) (bool, string) {
				seen = mctx
				return true, "drawdown"
			}},
			VetoFunc{AgentName: "liquidity", Fn: func(context.Context, string, market.Context) (bool, string) { return true, "thin book" }},
		}
		e := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: referenceAgents(), VetoAgents: vetoes})
		d := e.Decide(context.Background(), "BTC", 1, market.Context{"regime": "trending"})
		assert.False(t, d.ShouldTrade)
		assert.True(t, d.Vetoed)
		assert.Equal(t, []string{"risk: drawdown", "liquidity: thin book"}, d.VetoReasons)
		assert.Equal(t, "Up", seen["direction"])
		assert.Equal(t, "trending", seen["regime"])
		assert.Zero(t, e.Tracker().Stats().Recorded)
	})
}

func TestDecide_NoVotes(t *testing.T) {
	failing := AgentFunc{AgentName: "x", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
		return Vote{}, errors.New("feed down")
	}}
	d := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: []Agent{failing}}).Decide(context.Background(), "ETH", 1, nil)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, "no votes collected", d.Reason)
}

func TestDecide_ValidationFailure(t *testing.T) {
	agents := []Agent{
		fixedAgent("a", DirectionUp, 0.9, 0.9),
		fixedAgent("a", DirectionUp, 0.9, 0.9),
	}
	d := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: agents}).Decide(context.Background(), "ETH", 1, nil)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "duplicate agent votes")
}

func TestDecide_BadAgentIsIsolated(t *testing.T) {
	agents := append(referenceAgents(),
		AgentFunc{AgentName: "err", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
			return Vote{}, errors.New("boom")
		}},
		AgentFunc{AgentName: "panic", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
			panic("nil map")
		}},
		AgentFunc{AgentName: "zero", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
			return Vote{}, nil
		}},
	)
	d := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: agents}).Decide(context.Background(), "BTC", 1, nil)
	assert.True(t, d.ShouldTrade, d.Reason)
	assert.Len(t, d.Votes, 4)
}

func TestDecide_SlowAgentForfeitsVote(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := AgentFunc{AgentName: "slow", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
		<-release
		return NewVote("slow", DirectionDown, 1, 1, "", nil)
	}}
	cfg := referenceConfig()
	cfg.AgentTimeout = 20 * time.Millisecond
	d := NewDecisionEngine(cfg, EngineDeps{Agents: append(referenceAgents(), slow)}).Decide(context.Background(), "BTC", 1, nil)
	assert.True(t, d.ShouldTrade, d.Reason)
	for _, v := range d.Votes {
		assert.NotEqual(t, "slow", v.AgentName())
	}
}

func TestDecide_StrategyMultipliers(t *testing.T) {
	var calls int32
	counting := AgentFunc{AgentName: "off", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
		atomic.AddInt32(&calls, 1)
		return NewVote("off", DirectionDown, 1, 1, "", nil)
	}}
	cfg := referenceConfig()
	cfg.AgentWeights = map[string]float64{"a": -1, "b": -1, "c": -2, "off": 0}
	e := NewDecisionEngine(cfg, EngineDeps{Agents: append(referenceAgents(), counting)})
	d := e.Decide(context.Background(), "BTC", 1, nil)

	assert.Zero(t, atomic.LoadInt32(&calls))
	require.True(t, d.ShouldTrade, d.Reason)
	// a,b invert to Down (0.72+0.56), c inverts to Up at weight 2 (0.84).
	assert.Equal(t, DirectionDown, d.Direction)
	assert.InDelta(t, 1.28, d.WeightedScore, 1e-9)
	assert.InDelta(t, 2.0, d.Weights["c"], 1e-9)
	assert.InDelta(t, 0.84, d.Prediction.Scores[DirectionUp], 1e-9)
}

func TestDecide_AdaptiveWeights(t *testing.T) {
	acc := new(MockAccuracy)
	acc.On("AgentAccuracy", mock.Anything, mock.AnythingOfType("time.Time")).Return(map[string]AccuracyStats{
		"a": {SampleCount: SampleCount{Samples: 20, Correct: 10}}, // 50% -> 0.5
		"c": {SampleCount: SampleCount{Samples: 20, Correct: 19}}, // 95% -> 1.5
	}, nil)
	cfg := referenceConfig()
	cfg.AdaptiveWeights = true
	e := NewDecisionEngine(cfg, EngineDeps{Agents: referenceAgents(), Accuracy: acc})
	d := e.Decide(context.Background(), "BTC", 1, nil)

	assert.InDelta(t, 0.5, d.Weights["a"], 1e-9)
	assert.InDelta(t, 1.0, d.Weights["b"], 1e-9)
	assert.InDelta(t, 1.5, d.Weights["c"], 1e-9)
	// Up = 0.72*0.5 + 0.56 = 0.92, Down = 0.42*1.5 = 0.63
	assert.Equal(t, DirectionUp, d.Direction)
	assert.InDelta(t, 0.92, d.WeightedScore, 1e-9)
	assert.Equal(t, d.Weights, e.LastWeights())
	acc.AssertExpectations(t)
}

func TestDecide_AdaptiveSourceFailureFallsBack(t *testing.T) {
	acc := new(MockAccuracy)
	acc.On("AgentAccuracy", mock.Anything, mock.Anything).Return(nil, errors.New("journal locked"))
	cfg := referenceConfig()
	cfg.AdaptiveWeights = true
	d := NewDecisionEngine(cfg, EngineDeps{Agents: referenceAgents(), Accuracy: acc}).Decide(context.Background(), "BTC", 1, nil)
	assert.True(t, d.ShouldTrade)
	assert.InDelta(t, 1.28, d.WeightedScore, 1e-9)
}

type vetoingAgent struct {
	AgentFunc
}

func (vetoingAgent) CanVeto(context.Context, string, market.Context) (bool, string) {
	return true, "embedded veto"
}

func TestNewDecisionEngine_DetectsVetoCapability(t *testing.T) {
	agents := referenceAgents()
	agents[0] = vetoingAgent{AgentFunc: agents[0].(AgentFunc)}
	d := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: agents}).Decide(context.Background(), "BTC", 1, nil)
	assert.True(t, d.Vetoed)
	assert.Equal(t, []string{"a: embedded veto"}, d.VetoReasons)
}

func TestDecide_OpenBreakerSkipsAgent(t *testing.T) {
	var calls int32
	flaky := AgentFunc{AgentName: "flaky", Fn: func(context.Context, string, int64, market.Context) (Vote, error) {
		atomic.AddInt32(&calls, 1)
		return Vote{}, errors.New("upstream 500")
	}}
	breakers := circuit.NewSet(2, time.Hour)
	e := NewDecisionEngine(referenceConfig(), EngineDeps{Agents: append(referenceAgents(), flaky), Breakers: breakers})
	for i := 0; i < 4; i++ {
		e.Decide(context.Background(), "BTC", int64(i), nil)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, circuit.StateOpen, breakers.Get("flaky").State())
}
