package shadow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"polyshadow/internal/decision"
	"polyshadow/internal/logger"
	"polyshadow/internal/market"
	"polyshadow/internal/pkg/money"
	"polyshadow/internal/store"
	"polyshadow/internal/strategy"
)

var orchLog = logger.With("orchestrator")

// EngineFactory builds the decision engine a strategy runs.
type EngineFactory func(cfg strategy.Config) *decision.DecisionEngine

// Options configure an Orchestrator.
type Options struct {
	Strategy      StrategyOptions
	RestoreMaxAge time.Duration
	// Archive, when set, receives every tick passed to OnMarketData.
	Archive store.SnapshotArchive
	Now     func() time.Time
}

// StrategyDecision is one strategy's result for one tick.
type StrategyDecision struct {
	Strategy   string                 `json:"strategy"`
	Decision   decision.TradeDecision `json:"decision"`
	DecisionID int64                  `json:"decision_id,omitempty"`
	Executed   bool                   `json:"executed"`
	Position   *Position              `json:"position,omitempty"`
	TradeID    int64                  `json:"trade_id,omitempty"`
}

// Orchestrator fans each tick out to every shadow strategy in catalog order
// and journals decisions, trades and outcomes. Calls are serialised.
type Orchestrator struct {
	mu         sync.Mutex
	strategies []*ShadowStrategy
	byName     map[string]*ShadowStrategy
	journal    store.Journal
	archive    store.SnapshotArchive
	maxAge     time.Duration
	now        func() time.Time
	pending    map[EpochKey]struct{}
}

// NewOrchestrator builds one ShadowStrategy per non-live catalog entry and
// registers each in the journal. Registration failures are logged only.
func NewOrchestrator(ctx context.Context, catalog *strategy.Catalog, factory EngineFactory, journal store.Journal, opts Options) (*Orchestrator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("orchestrator requires a strategy catalog")
	}
	if factory == nil {
		return nil, fmt.Errorf("orchestrator requires an engine factory")
	}
	if journal == nil {
		return nil, fmt.Errorf("orchestrator requires a journal")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Strategy.Now == nil {
		opts.Strategy.Now = opts.Now
	}
	if opts.RestoreMaxAge <= 0 {
		opts.RestoreMaxAge = DefaultRestoreMaxAge
	}
	o := &Orchestrator{
		byName:  make(map[string]*ShadowStrategy),
		journal: journal,
		archive: opts.Archive,
		maxAge:  opts.RestoreMaxAge,
		now:     opts.Now,
		pending: make(map[EpochKey]struct{}),
	}
	for _, cfg := range catalog.Shadow() {
		s := NewShadowStrategy(cfg, factory(cfg), opts.Strategy)
		o.strategies = append(o.strategies, s)
		o.byName[cfg.Name] = s
		if err := journal.RegisterStrategy(ctx, store.StrategyRecord{Name: cfg.Name, IsLive: cfg.IsLive, Config: cfg}); err != nil {
			orchLog.Warnf("register strategy %s failed: %v", cfg.Name, err)
		}
	}
	if len(o.strategies) == 0 {
		return nil, fmt.Errorf("catalog has no shadow strategies")
	}
	orchLog.Infof("orchestrator ready with %d shadow strategies", len(o.strategies))
	return o, nil
}

func (o *Orchestrator) Strategies() []*ShadowStrategy {
	return append([]*ShadowStrategy(nil), o.strategies...)
}

func (o *Orchestrator) Strategy(name string) (*ShadowStrategy, bool) {
	s, ok := o.byName[name]
	return s, ok
}

// OnMarketData evaluates every strategy for (asset, epoch). A strategy whose
// decision cannot be journaled does not execute this cycle; the remaining
// strategies still run and all journal failures are joined into the error.
func (o *Orchestrator) OnMarketData(ctx context.Context, asset string, epoch int64, mctx market.Context) ([]StrategyDecision, error) {
	if asset == "" {
		return nil, fmt.Errorf("asset is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.archiveTick(ctx, asset, epoch, mctx)
	o.pending[EpochKey{Asset: asset, Epoch: epoch}] = struct{}{}

	var errs []error
	results := make([]StrategyDecision, 0, len(o.strategies))
	for _, s := range o.strategies {
		d := s.MakeDecision(ctx, asset, epoch, mctx)
		res := StrategyDecision{Strategy: s.Name(), Decision: d}

		decisionID, err := o.journal.LogDecision(ctx, decisionRecord(s, d, mctx))
		if err != nil {
			orchLog.Errorf("[%s] log decision %s@%d failed, skipping execution: %v", s.Name(), asset, epoch, err)
			errs = append(errs, fmt.Errorf("%s: log decision: %w", s.Name(), err))
			results = append(results, res)
			continue
		}
		res.DecisionID = decisionID

		if d.ShouldTrade {
			if pos, ok := s.Execute(d, mctx); ok {
				res.Executed = true
				tradeID, err := o.journal.LogTrade(ctx, tradeRecord(s.Name(), decisionID, pos))
				if err != nil {
					orchLog.Errorf("[%s] log trade %s@%d failed: %v", s.Name(), asset, epoch, err)
					errs = append(errs, fmt.Errorf("%s: log trade: %w", s.Name(), err))
				} else {
					res.TradeID = tradeID
					s.SetTradeID(pos.Key(), tradeID)
					pos.TradeID = tradeID
				}
				res.Position = &pos
			}
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// OnEpochResolution records the market outcome, then settles every strategy
// holding (asset, epoch) and snapshots its performance.
func (o *Orchestrator) OnEpochResolution(ctx context.Context, asset string, epoch int64, outcome Outcome) ([]Resolution, error) {
	if !outcome.Direction.Directional() {
		return nil, fmt.Errorf("resolution direction must be Up or Down, got %q", outcome.Direction)
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	if _, err := o.journal.LogMarketOutcome(ctx, store.MarketOutcomeRecord{
		Asset:      asset,
		Epoch:      epoch,
		Direction:  string(outcome.Direction),
		StartPrice: outcome.StartPrice,
		EndPrice:   outcome.EndPrice,
		CreatedAt:  o.now(),
	}); err != nil {
		orchLog.Errorf("log market outcome %s@%d failed: %v", asset, epoch, err)
		errs = append(errs, fmt.Errorf("log market outcome: %w", err))
	}

	var resolutions []Resolution
	for _, s := range o.strategies {
		res, ok := s.Resolve(asset, epoch, outcome.Direction)
		if !ok {
			continue
		}
		resolutions = append(resolutions, res)
		if _, err := o.journal.LogOutcome(ctx, store.OutcomeRecord{
			TradeID:         res.Position.TradeID,
			Strategy:        s.Name(),
			Asset:           asset,
			Epoch:           epoch,
			Direction:       string(res.Position.Direction),
			ActualDirection: string(outcome.Direction),
			Won:             res.Won,
			Payout:          money.ToFloat(res.Payout),
			PnL:             money.ToFloat(res.PnL),
			CreatedAt:       o.now(),
		}); err != nil {
			orchLog.Errorf("[%s] log outcome %s@%d failed: %v", s.Name(), asset, epoch, err)
			errs = append(errs, fmt.Errorf("%s: log outcome: %w", s.Name(), err))
			continue
		}
		if err := o.journal.LogPerformance(ctx, performanceRecord(s.Stats(), o.now())); err != nil {
			orchLog.Warnf("[%s] performance snapshot failed: %v", s.Name(), err)
		}
	}
	delete(o.pending, EpochKey{Asset: asset, Epoch: epoch})
	return resolutions, errors.Join(errs...)
}

// PendingEpochs lists keys seen by OnMarketData (or restored) that have not
// been resolved, oldest first.
func (o *Orchestrator) PendingEpochs() []EpochKey {
	o.mu.Lock()
	out := make([]EpochKey, 0, len(o.pending))
	for k := range o.pending {
		out = append(out, k)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Epoch != out[j].Epoch {
			return out[i].Epoch < out[j].Epoch
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

// DropPending forgets a key the resolver has given up on and voids any
// position still open on it, refunding the stake. Returns the number of
// positions voided.
func (o *Orchestrator) DropPending(key EpochKey) int {
	o.mu.Lock()
	delete(o.pending, key)
	o.mu.Unlock()

	voided := 0
	for _, s := range o.strategies {
		if _, ok := s.Void(key); ok {
			voided++
		}
	}
	if voided > 0 {
		orchLog.Warnf("dropped %s@%d with %d open positions voided", key.Asset, key.Epoch, voided)
	}
	return voided
}

func (o *Orchestrator) archiveTick(ctx context.Context, asset string, epoch int64, mctx market.Context) {
	if o.archive == nil {
		return
	}
	price, _ := mctx.Price()
	if err := o.archive.Archive(ctx, asset, epoch, mctx.ElapsedSeconds(), price, mctx); err != nil {
		orchLog.Warnf("archive tick %s@%d failed: %v", asset, epoch, err)
	}
}

func decisionRecord(s *ShadowStrategy, d decision.TradeDecision, mctx market.Context) store.DecisionRecord {
	cfg := s.Config()
	votes := make([]store.VoteRecord, 0, len(d.Votes))
	for _, v := range d.Votes {
		votes = append(votes, store.VoteRecord{
			Agent:      v.AgentName(),
			Direction:  string(v.Direction()),
			Confidence: v.Confidence(),
			Quality:    v.Quality(),
			Weight:     d.Weights[v.AgentName()],
			Reasoning:  v.Reasoning(),
			Details:    v.Details(),
			Inverted:   cfg.Weight(v.AgentName()) < 0,
		})
	}
	return store.DecisionRecord{
		Strategy:      s.Name(),
		Asset:         d.Asset,
		Epoch:         d.Epoch,
		TraceID:       d.TraceID,
		ShouldTrade:   d.ShouldTrade,
		Direction:     string(d.Direction),
		Reason:        d.Reason,
		WeightedScore: d.WeightedScore,
		Confidence:    d.Confidence,
		Vetoed:        d.Vetoed,
		VetoReasons:   d.VetoReasons,
		Context:       mctx,
		Votes:         votes,
		CreatedAt:     d.Timestamp,
	}
}

func tradeRecord(strategyName string, decisionID int64, pos Position) store.TradeRecord {
	return store.TradeRecord{
		DecisionID:    decisionID,
		Strategy:      strategyName,
		Asset:         pos.Asset,
		Epoch:         pos.Epoch,
		Direction:     string(pos.Direction),
		EntryPrice:    money.ToFloat(pos.EntryPrice),
		Size:          money.ToFloat(pos.Size),
		Shares:        money.ToFloat(pos.Shares),
		Confidence:    pos.Confidence,
		WeightedScore: pos.WeightedScore,
		CreatedAt:     pos.Timestamp,
	}
}

func performanceRecord(st Stats, at time.Time) store.PerformanceRecord {
	return store.PerformanceRecord{
		Strategy:      st.Name,
		Balance:       money.ToFloat(st.Balance),
		TotalPnL:      money.ToFloat(st.PnL),
		Trades:        st.Trades,
		Wins:          st.Wins,
		Losses:        st.Losses,
		WinRate:       st.WinRate,
		ROI:           st.ROI,
		OpenPositions: st.OpenPositions,
		CreatedAt:     at,
	}
}
