package store

import (
	"context"
	"time"
)

// StrategyRecord is one catalog entry as registered in the journal.
type StrategyRecord struct {
	Name   string
	IsLive bool
	Config any
}

// VoteRecord is one agent's vote attached to a decision.
type VoteRecord struct {
	Agent      string
	Direction  string
	Confidence float64
	Quality    float64
	Weight     float64
	Reasoning  string
	Details    map[string]any
	// Inverted marks a vote flipped by a negative strategy multiplier; such
	// rows are excluded from agent accuracy.
	Inverted bool
}

// DecisionRecord is one evaluated cycle, traded or not.
type DecisionRecord struct {
	ID            int64
	Strategy      string
	Asset         string
	Epoch         int64
	TraceID       string
	ShouldTrade   bool
	Direction     string
	Reason        string
	WeightedScore float64
	Confidence    float64
	Vetoed        bool
	VetoReasons   []string
	Context       map[string]any
	Votes         []VoteRecord
	CreatedAt     time.Time
}

// TradeRecord is an executed (virtual) trade.
type TradeRecord struct {
	ID            int64
	DecisionID    int64
	Strategy      string
	Asset         string
	Epoch         int64
	Direction     string
	EntryPrice    float64
	Size          float64
	Shares        float64
	Confidence    float64
	WeightedScore float64
	CreatedAt     time.Time
}

// OutcomeRecord is the resolution of one trade.
type OutcomeRecord struct {
	ID              int64
	TradeID         int64
	Strategy        string
	Asset           string
	Epoch           int64
	Direction       string
	ActualDirection string
	Won             bool
	Payout          float64
	PnL             float64
	CreatedAt       time.Time
}

// MarketOutcomeRecord is the actual direction of one (asset, epoch).
type MarketOutcomeRecord struct {
	ID         int64
	Asset      string
	Epoch      int64
	Direction  string
	StartPrice float64
	EndPrice   float64
	CreatedAt  time.Time
}

// PerformanceRecord is a point-in-time snapshot of one strategy's book.
type PerformanceRecord struct {
	Strategy      string    `json:"strategy"`
	Balance       float64   `json:"balance"`
	TotalPnL      float64   `json:"total_pnl"`
	Trades        int       `json:"trades"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	WinRate       float64   `json:"win_rate"`
	ROI           float64   `json:"roi"`
	OpenPositions int       `json:"open_positions"`
	CreatedAt     time.Time `json:"created_at"`
}

// Journal is the durable trade log. Log* writes are idempotent on
// (strategy, asset, epoch) (or (asset, epoch) for market outcomes): a repeat
// returns the id of the row already stored.
type Journal interface {
	// RegisterStrategy is non-critical: contention is logged, not returned.
	RegisterStrategy(ctx context.Context, rec StrategyRecord) error
	LogDecision(ctx context.Context, rec DecisionRecord) (int64, error)
	LogTrade(ctx context.Context, rec TradeRecord) (int64, error)
	LogOutcome(ctx context.Context, rec OutcomeRecord) (int64, error)
	LogMarketOutcome(ctx context.Context, rec MarketOutcomeRecord) (int64, error)
	LogPerformance(ctx context.Context, rec PerformanceRecord) error
	// UnresolvedTrades lists trades with no outcome row, oldest first.
	UnresolvedTrades(ctx context.Context) ([]TradeRecord, error)
}

// SnapshotArchive keeps the raw ticks seen by the orchestrator.
type SnapshotArchive interface {
	Archive(ctx context.Context, asset string, epoch, elapsedSeconds int64, price float64, raw map[string]any) error
}
