package model

import "gorm.io/datatypes"

// AgentVoteModel maps to 'agent_votes'; one row per agent per decision.
type AgentVoteModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	DecisionID    int64          `gorm:"column:decision_id;uniqueIndex:idx_agent_vote,priority:1"`
	Agent         string         `gorm:"column:agent;uniqueIndex:idx_agent_vote,priority:2;index"`
	Strategy      string         `gorm:"column:strategy"`
	Asset         string         `gorm:"column:asset"`
	Epoch         int64          `gorm:"column:epoch;index"`
	Direction     string         `gorm:"column:direction"`
	Confidence    float64        `gorm:"column:confidence"`
	Quality       float64        `gorm:"column:quality"`
	Weight        float64        `gorm:"column:weight"`
	Inverted      bool           `gorm:"column:inverted"`
	Reasoning     string         `gorm:"column:reasoning"`
	Details       datatypes.JSON `gorm:"column:details;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (AgentVoteModel) TableName() string { return "agent_votes" }

// PerformanceModel maps to 'performance' snapshots.
type PerformanceModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Strategy      string  `gorm:"column:strategy;index"`
	Balance       float64 `gorm:"column:balance"`
	TotalPnL      float64 `gorm:"column:total_pnl"`
	Trades        int     `gorm:"column:trades"`
	Wins          int     `gorm:"column:wins"`
	Losses        int     `gorm:"column:losses"`
	WinRate       float64 `gorm:"column:win_rate"`
	ROI           float64 `gorm:"column:roi"`
	OpenPositions int     `gorm:"column:open_positions"`
	CreatedAtUnix int64   `gorm:"column:created_at;index"`
}

func (PerformanceModel) TableName() string { return "performance" }
