package shadow

import (
	"context"
	"time"

	"polyshadow/internal/decision"
	"polyshadow/internal/market"
	"polyshadow/internal/store"
	"polyshadow/internal/strategy"

	"github.com/stretchr/testify/mock"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) RegisterStrategy(ctx context.Context, rec store.StrategyRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockJournal) LogDecision(ctx context.Context, rec store.DecisionRecord) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJournal) LogTrade(ctx context.Context, rec store.TradeRecord) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJournal) LogOutcome(ctx context.Context, rec store.OutcomeRecord) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJournal) LogMarketOutcome(ctx context.Context, rec store.MarketOutcomeRecord) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJournal) LogPerformance(ctx context.Context, rec store.PerformanceRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockJournal) UnresolvedTrades(ctx context.Context) ([]store.TradeRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.TradeRecord), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Archive(ctx context.Context, asset string, epoch, elapsed int64, price float64, raw map[string]any) error {
	return m.Called(ctx, asset, epoch, elapsed, price, raw).Error(0)
}

const testEpoch int64 = 1700000100

var testNow = time.Unix(testEpoch+300, 0).UTC()

func fixedClock() time.Time { return testNow }

func fixedAgent(name string, dir decision.Direction, confidence, quality float64) decision.Agent {
	return decision.AgentFunc{AgentName: name, Fn: func(context.Context, string, int64, market.Context) (decision.Vote, error) {
		return decision.NewVote(name, dir, confidence, quality, "fixture", map[string]any{"k": 1})
	}}
}

// upAgents approve Up at threshold 0.40 (score 1.28, confidence 0.75).
func upAgents() []decision.Agent {
	return []decision.Agent{
		fixedAgent("tech", decision.DirectionUp, 0.8, 0.9),
		fixedAgent("sentiment", decision.DirectionUp, 0.7, 0.8),
		fixedAgent("regime", decision.DirectionDown, 0.6, 0.7),
	}
}

func engineFactory(agents []decision.Agent) EngineFactory {
	return func(cfg strategy.Config) *decision.DecisionEngine {
		return decision.NewDecisionEngine(cfg.EngineConfig(decision.EngineConfig{AgentTimeout: time.Second}), decision.EngineDeps{
			Agents: agents,
			Now:    fixedClock,
		})
	}
}

func testCatalog() *strategy.Catalog {
	return strategy.MustCatalog(
		strategy.Config{Name: "live", ConsensusThreshold: 0.4, MinConfidence: 0.4, IsLive: true},
		strategy.Config{Name: "beta", ConsensusThreshold: 0.4, MinConfidence: 0.4},
		strategy.Config{Name: "alpha", ConsensusThreshold: 0.4, MinConfidence: 0.4, AgentWeights: map[string]float64{"regime": -1}},
		strategy.Config{Name: "picky", ConsensusThreshold: 5, MinConfidence: 0.4},
	)
}

func approved(asset string, epoch int64, dir decision.Direction) decision.TradeDecision {
	return decision.TradeDecision{
		ShouldTrade:   true,
		Direction:     dir,
		Asset:         asset,
		Epoch:         epoch,
		Confidence:    0.75,
		WeightedScore: 1.28,
	}
}
