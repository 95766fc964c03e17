package model

import (
	"gorm.io/datatypes"
)

// StrategyModel 策略目录，按名称唯一。
type StrategyModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Name          string         `gorm:"column:name;uniqueIndex"`
	IsLive        bool           `gorm:"column:is_live"`
	ConfigJSON    datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (StrategyModel) TableName() string { return "strategies" }

// DecisionModel 记录每一次评估（无论是否交易）。(strategy, asset, epoch) 唯一。
type DecisionModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Strategy      string         `gorm:"column:strategy;uniqueIndex:idx_decision_key,priority:1"`
	Asset         string         `gorm:"column:asset;uniqueIndex:idx_decision_key,priority:2"`
	Epoch         int64          `gorm:"column:epoch;uniqueIndex:idx_decision_key,priority:3"`
	TraceID       string         `gorm:"column:trace_id;index"`
	ShouldTrade   bool           `gorm:"column:should_trade"`
	Direction     string         `gorm:"column:direction"`
	Reason        string         `gorm:"column:reason"`
	WeightedScore float64        `gorm:"column:weighted_score"`
	Confidence    float64        `gorm:"column:confidence"`
	Vetoed        bool           `gorm:"column:vetoed"`
	VetoReasons   datatypes.JSON `gorm:"column:veto_reasons;type:TEXT"`
	ContextJSON   datatypes.JSON `gorm:"column:context_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (DecisionModel) TableName() string { return "decisions" }

// TradeModel 仅记录已执行的交易；结算后 outcome/payout/pnl 只回填一次。
type TradeModel struct {
	ID             int64    `gorm:"column:id;primaryKey"`
	DecisionID     int64    `gorm:"column:decision_id;index"`
	Strategy       string   `gorm:"column:strategy;uniqueIndex:idx_trade_key,priority:1"`
	Asset          string   `gorm:"column:asset;uniqueIndex:idx_trade_key,priority:2"`
	Epoch          int64    `gorm:"column:epoch;uniqueIndex:idx_trade_key,priority:3"`
	Direction      string   `gorm:"column:direction"`
	EntryPrice     float64  `gorm:"column:entry_price"`
	Size           float64  `gorm:"column:size"`
	Shares         float64  `gorm:"column:shares"`
	Confidence     float64  `gorm:"column:confidence"`
	WeightedScore  float64  `gorm:"column:weighted_score"`
	Outcome        string   `gorm:"column:outcome"`
	Payout         *float64 `gorm:"column:payout"`
	PnL            *float64 `gorm:"column:pnl"`
	CreatedAtUnix  int64    `gorm:"column:created_at"`
	ResolvedAtUnix *int64   `gorm:"column:resolved_at"`
}

func (TradeModel) TableName() string { return "trades" }

// OutcomeModel 已结算的交易结果。(strategy, asset, epoch) 唯一。
type OutcomeModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	TradeID         int64   `gorm:"column:trade_id;index"`
	Strategy        string  `gorm:"column:strategy;uniqueIndex:idx_outcome_key,priority:1"`
	Asset           string  `gorm:"column:asset;uniqueIndex:idx_outcome_key,priority:2"`
	Epoch           int64   `gorm:"column:epoch;uniqueIndex:idx_outcome_key,priority:3"`
	Direction       string  `gorm:"column:direction"`
	ActualDirection string  `gorm:"column:actual_direction"`
	Won             bool    `gorm:"column:won"`
	Payout          float64 `gorm:"column:payout"`
	PnL             float64 `gorm:"column:pnl"`
	CreatedAtUnix   int64   `gorm:"column:created_at"`
}

func (OutcomeModel) TableName() string { return "outcomes" }

// MarketOutcomeModel 每个 (asset, epoch) 的实际方向，与是否有策略下单无关。
type MarketOutcomeModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Asset         string  `gorm:"column:asset;uniqueIndex:idx_market_outcome_key,priority:1"`
	Epoch         int64   `gorm:"column:epoch;uniqueIndex:idx_market_outcome_key,priority:2"`
	Direction     string  `gorm:"column:direction"`
	StartPrice    float64 `gorm:"column:start_price"`
	EndPrice      float64 `gorm:"column:end_price"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (MarketOutcomeModel) TableName() string { return "market_outcomes" }
