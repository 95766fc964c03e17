package shadow

import (
	"context"
	"sort"
	"sync"
	"time"

	"polyshadow/internal/decision"
	"polyshadow/internal/logger"
	"polyshadow/internal/market"
	"polyshadow/internal/pkg/money"
	"polyshadow/internal/strategy"

	"github.com/shopspring/decimal"
)

var shadowLog = logger.With("shadow")

const (
	DefaultInitialBalance = 1000.0
	DefaultPositionSize   = 10.0
	DefaultEntryPrice     = 0.5
	DefaultRestoreMaxAge  = 2 * time.Hour
	DefaultRecentTrades   = 20
)

// StrategyOptions are the book settings shared by every shadow strategy.
type StrategyOptions struct {
	InitialBalance    float64
	PositionSize      float64
	DefaultEntryPrice float64
	Now               func() time.Time
}

func (o StrategyOptions) withDefaults() StrategyOptions {
	if o.InitialBalance <= 0 {
		o.InitialBalance = DefaultInitialBalance
	}
	if o.PositionSize <= 0 {
		o.PositionSize = DefaultPositionSize
	}
	if o.DefaultEntryPrice <= 0 || o.DefaultEntryPrice >= 1 {
		o.DefaultEntryPrice = DefaultEntryPrice
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ShadowStrategy is one virtual trader: its own balance, open positions and
// history, deciding through its own engine.
type ShadowStrategy struct {
	cfg    strategy.Config
	engine *decision.DecisionEngine
	opts   StrategyOptions

	mu        sync.Mutex
	initial   decimal.Decimal
	balance   decimal.Decimal
	totalPnL  decimal.Decimal
	positions map[EpochKey]*Position
	history   []TradeRecord
	wins      int
	losses    int
}

func NewShadowStrategy(cfg strategy.Config, engine *decision.DecisionEngine, opts StrategyOptions) *ShadowStrategy {
	opts = opts.withDefaults()
	initial := money.FromFloat(opts.InitialBalance)
	return &ShadowStrategy{
		cfg:       cfg.Clone(),
		engine:    engine,
		opts:      opts,
		initial:   initial,
		balance:   initial,
		totalPnL:  money.Zero,
		positions: make(map[EpochKey]*Position),
	}
}

func (s *ShadowStrategy) Name() string { return s.cfg.Name }

func (s *ShadowStrategy) Config() strategy.Config { return s.cfg.Clone() }

func (s *ShadowStrategy) Engine() *decision.DecisionEngine { return s.engine }

func (s *ShadowStrategy) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// MakeDecision runs the engine with this strategy's own book in the context,
// so agents never see another strategy's balance or positions.
func (s *ShadowStrategy) MakeDecision(ctx context.Context, asset string, epoch int64, mctx market.Context) decision.TradeDecision {
	s.mu.Lock()
	book := map[string]any{
		market.KeyBalance:       money.ToFloat(s.balance),
		market.KeyOpenPositions: len(s.positions),
		market.KeyStrategy:      s.cfg.Name,
	}
	s.mu.Unlock()
	return s.engine.Decide(ctx, asset, epoch, mctx.Merge(book))
}

// Execute opens a position for an approved decision. It is a no-op when the
// key is already held, the stake exceeds the balance, or no valid entry price
// can be found.
func (s *ShadowStrategy) Execute(d decision.TradeDecision, mctx market.Context) (Position, bool) {
	if !d.ShouldTrade || !d.Direction.Directional() {
		return Position{}, false
	}
	price, ok := s.entryPrice(d.Direction, mctx)
	if !ok {
		shadowLog.Warnf("[%s] %s@%d skip: entry price %v outside (0,1)", s.cfg.Name, d.Asset, d.Epoch, price)
		return Position{}, false
	}
	size := s.stake()
	key := EpochKey{Asset: d.Asset, Epoch: d.Epoch}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[key]; exists {
		return Position{}, false
	}
	if size.GreaterThan(s.balance) {
		shadowLog.Infof("[%s] %s@%d skip: stake %s exceeds balance %s", s.cfg.Name, d.Asset, d.Epoch, size.StringFixed(2), s.balance.StringFixed(2))
		return Position{}, false
	}
	entry := money.FromFloat(price)
	pos := Position{
		Asset:         d.Asset,
		Epoch:         d.Epoch,
		Direction:     d.Direction,
		EntryPrice:    entry,
		Size:          size,
		Shares:        size.DivRound(entry, 8),
		Confidence:    d.Confidence,
		WeightedScore: d.WeightedScore,
		Timestamp:     s.opts.Now().UTC(),
	}
	s.balance = s.balance.Sub(size)
	s.positions[key] = &pos
	s.history = append(s.history, TradeRecord{Position: pos})
	shadowLog.Infof("[%s] open %s %s@%d size=%s price=%s", s.cfg.Name, pos.Direction, pos.Asset, pos.Epoch, size.StringFixed(2), entry.String())
	return pos, true
}

// Restore re-inserts a position recovered from the journal and debits its
// size. It refuses a key already held or a size above the balance.
func (s *ShadowStrategy) Restore(pos Position) bool {
	key := pos.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[key]; exists {
		return false
	}
	if !pos.Size.IsPositive() || pos.Size.GreaterThan(s.balance) {
		return false
	}
	s.balance = s.balance.Sub(pos.Size)
	p := pos
	s.positions[key] = &p
	s.history = append(s.history, TradeRecord{Position: pos})
	return true
}

// Resolve settles the position for (asset, epoch). Untracked or already
// settled keys return false and change nothing.
func (s *ShadowStrategy) Resolve(asset string, epoch int64, actual decision.Direction) (Resolution, bool) {
	key := EpochKey{Asset: asset, Epoch: epoch}
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[key]
	if !ok {
		return Resolution{}, false
	}
	won := pos.Direction == actual
	payout := money.Zero
	if won {
		payout = pos.Shares.Mul(money.One)
	}
	pnl := payout.Sub(pos.Size)

	s.balance = s.balance.Add(payout)
	s.totalPnL = s.totalPnL.Add(pnl)
	if won {
		s.wins++
	} else {
		s.losses++
	}
	delete(s.positions, key)

	now := s.opts.Now().UTC()
	for i := len(s.history) - 1; i >= 0; i-- {
		h := &s.history[i]
		if h.Key() != key || h.Resolved {
			continue
		}
		h.Resolved = true
		h.Outcome = actual
		h.Won = won
		h.Payout = payout
		h.PnL = pnl
		h.ResolvedAt = now
		break
	}
	shadowLog.Infof("[%s] resolve %s@%d %s vs %s pnl=%s balance=%s", s.cfg.Name, asset, epoch, pos.Direction, actual, pnl.StringFixed(2), s.balance.StringFixed(2))
	return Resolution{
		Strategy: s.cfg.Name,
		Position: *pos,
		Actual:   actual,
		Won:      won,
		Payout:   payout,
		PnL:      pnl,
	}, true
}

// Void refunds and closes the position for key without an outcome. The
// history entry is marked resolved and voided with zero PnL; win/loss counts
// are untouched.
func (s *ShadowStrategy) Void(key EpochKey) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[key]
	if !ok {
		return Position{}, false
	}
	s.balance = s.balance.Add(pos.Size)
	delete(s.positions, key)

	now := s.opts.Now().UTC()
	for i := len(s.history) - 1; i >= 0; i-- {
		h := &s.history[i]
		if h.Key() != key || h.Resolved {
			continue
		}
		h.Resolved = true
		h.Voided = true
		h.Payout = pos.Size
		h.PnL = money.Zero
		h.ResolvedAt = now
		break
	}
	shadowLog.Warnf("[%s] void %s@%d refund=%s balance=%s", s.cfg.Name, key.Asset, key.Epoch, pos.Size.StringFixed(2), s.balance.StringFixed(2))
	return *pos, true
}

// SetTradeID attaches the journal id to the open position and its history entry.
func (s *ShadowStrategy) SetTradeID(key EpochKey, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[key]; ok {
		pos.TradeID = id
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Key() == key {
			s.history[i].TradeID = id
			return
		}
	}
}

// OpenPositions lists open positions ordered by epoch then asset.
func (s *ShadowStrategy) OpenPositions() []Position {
	s.mu.Lock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Epoch != out[j].Epoch {
			return out[i].Epoch < out[j].Epoch
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

// History returns up to limit of the most recent trades, newest last.
func (s *ShadowStrategy) History(limit int) []TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}
	return append([]TradeRecord(nil), s.history[start:]...)
}

// Stats is a point-in-time view of the book.
type Stats struct {
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	PnL            decimal.Decimal `json:"pnl"`
	Trades         int             `json:"trades"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	WinRate        float64         `json:"win_rate"`
	ROI            float64         `json:"roi"`
	OpenPositions  int             `json:"open_positions"`
	Bias           bool            `json:"bias"`
}

func (s *ShadowStrategy) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolved := s.wins + s.losses
	st := Stats{
		Name:           s.cfg.Name,
		Balance:        s.balance,
		InitialBalance: s.initial,
		PnL:            s.totalPnL,
		Trades:         len(s.history),
		Wins:           s.wins,
		Losses:         s.losses,
		ROI:            money.Ratio(s.totalPnL, s.initial),
		OpenPositions:  len(s.positions),
		Bias:           s.engine != nil && s.engine.Tracker().HasBias(),
	}
	if resolved > 0 {
		st.WinRate = money.Ratio(decimal.NewFromInt(int64(s.wins)), decimal.NewFromInt(int64(resolved)))
	}
	return st
}

func (s *ShadowStrategy) stake() decimal.Decimal {
	if s.cfg.PositionSize > 0 {
		return money.FromFloat(s.cfg.PositionSize)
	}
	return money.FromFloat(s.opts.PositionSize)
}

func (s *ShadowStrategy) entryPrice(dir decision.Direction, mctx market.Context) (float64, bool) {
	price, ok := mctx.OutcomePrice(dir == decision.DirectionUp)
	if !ok {
		price = s.opts.DefaultEntryPrice
	}
	return price, price > 0 && price < 1
}
