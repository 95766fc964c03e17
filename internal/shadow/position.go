package shadow

import (
	"time"

	"polyshadow/internal/decision"

	"github.com/shopspring/decimal"
)

// EpochKey identifies one market window of one asset.
type EpochKey struct {
	Asset string `json:"asset"`
	Epoch int64  `json:"epoch"`
}

// Position is an open virtual bet. A strategy holds at most one per EpochKey.
type Position struct {
	Asset         string             `json:"asset"`
	Epoch         int64              `json:"epoch"`
	Direction     decision.Direction `json:"direction"`
	EntryPrice    decimal.Decimal    `json:"entry_price"`
	Size          decimal.Decimal    `json:"size"`
	Shares        decimal.Decimal    `json:"shares"`
	Confidence    float64            `json:"confidence"`
	WeightedScore float64            `json:"weighted_score"`
	Timestamp     time.Time          `json:"timestamp"`
	TradeID       int64              `json:"trade_id,omitempty"`
}

func (p Position) Key() EpochKey {
	return EpochKey{Asset: p.Asset, Epoch: p.Epoch}
}

// TradeRecord is one entry of a strategy's trade history. Outcome fields are
// filled exactly once, on resolution.
type TradeRecord struct {
	Position
	Resolved   bool               `json:"resolved"`
	Voided     bool               `json:"voided,omitempty"`
	Outcome    decision.Direction `json:"outcome,omitempty"`
	Won        bool               `json:"won"`
	Payout     decimal.Decimal    `json:"payout"`
	PnL        decimal.Decimal    `json:"pnl"`
	ResolvedAt time.Time          `json:"resolved_at,omitempty"`
}

// Resolution is what Resolve returns for a tracked position.
type Resolution struct {
	Strategy string             `json:"strategy"`
	Position Position           `json:"position"`
	Actual   decision.Direction `json:"actual"`
	Won      bool               `json:"won"`
	Payout   decimal.Decimal    `json:"payout"`
	PnL      decimal.Decimal    `json:"pnl"`
}

// Outcome is the actual result of an epoch as reported by an outcome source.
type Outcome struct {
	Direction  decision.Direction `json:"direction"`
	StartPrice float64            `json:"start_price"`
	EndPrice   float64            `json:"end_price"`
}
