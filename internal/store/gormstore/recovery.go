package gormstore

import (
	"context"
	"fmt"
	"time"

	"polyshadow/internal/store"
)

type unresolvedRow struct {
	ID            int64   `gorm:"column:id"`
	DecisionID    int64   `gorm:"column:decision_id"`
	Strategy      string  `gorm:"column:strategy"`
	Asset         string  `gorm:"column:asset"`
	Epoch         int64   `gorm:"column:epoch"`
	Direction     string  `gorm:"column:direction"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	Size          float64 `gorm:"column:size"`
	Shares        float64 `gorm:"column:shares"`
	Confidence    float64 `gorm:"column:confidence"`
	WeightedScore float64 `gorm:"column:weighted_score"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

// Rows written before direction lived on trades fall back to the decision's
// direction.
const unresolvedTradesSQL = `
SELECT t.id, t.decision_id, t.strategy, t.asset, t.epoch,
       COALESCE(NULLIF(t.direction, ''), d.direction, '') AS direction,
       t.entry_price, t.size, t.shares, t.confidence, t.weighted_score, t.created_at
FROM trades t
LEFT JOIN outcomes o ON o.strategy = t.strategy AND o.asset = t.asset AND o.epoch = t.epoch
LEFT JOIN decisions d ON d.strategy = t.strategy AND d.asset = t.asset AND d.epoch = t.epoch
WHERE o.id IS NULL
ORDER BY t.strategy, t.epoch, t.id`

// UnresolvedTrades lists trade rows with no matching outcome row.
func (s *GormStore) UnresolvedTrades(ctx context.Context) ([]store.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var rows []unresolvedRow
	err := s.withRetry(ctx, "unresolved trades", func() error {
		rows = rows[:0]
		return s.db.WithContext(ctx).Raw(unresolvedTradesSQL).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.TradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.TradeRecord{
			ID:            r.ID,
			DecisionID:    r.DecisionID,
			Strategy:      r.Strategy,
			Asset:         r.Asset,
			Epoch:         r.Epoch,
			Direction:     r.Direction,
			EntryPrice:    r.EntryPrice,
			Size:          r.Size,
			Shares:        r.Shares,
			Confidence:    r.Confidence,
			WeightedScore: r.WeightedScore,
			CreatedAt:     time.Unix(r.CreatedAtUnix, 0).UTC(),
		})
	}
	return out, nil
}
