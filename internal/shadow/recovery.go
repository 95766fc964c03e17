package shadow

import (
	"context"
	"fmt"

	"polyshadow/internal/decision"
	"polyshadow/internal/pkg/money"
)

// RestoreReport counts what RestoreOpenPositions did with each unresolved row.
type RestoreReport struct {
	Restored int `json:"restored"`
	Stale    int `json:"stale"`
	Skipped  int `json:"skipped"`
}

// RestoreOpenPositions reloads unresolved trades younger than the restore age
// into their strategies, debiting each stake again. It never fails startup:
// any error or panic is logged and whatever was restored so far is kept.
func (o *Orchestrator) RestoreOpenPositions(ctx context.Context) (report RestoreReport) {
	defer func() {
		if r := recover(); r != nil {
			orchLog.Errorf("restore open positions panicked after %d restored: %v", report.Restored, r)
		}
	}()
	rows, err := o.journal.UnresolvedTrades(ctx)
	if err != nil {
		orchLog.Errorf("restore open positions: load unresolved trades failed: %v", err)
		return report
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	nowUnix := o.now().Unix()
	maxAge := int64(o.maxAge.Seconds())
	for _, row := range rows {
		s, ok := o.byName[row.Strategy]
		if !ok {
			report.Skipped++
			orchLog.Debugf("restore: %s@%d belongs to inactive strategy %s", row.Asset, row.Epoch, row.Strategy)
			continue
		}
		if age := nowUnix - row.Epoch; age > maxAge {
			report.Stale++
			orchLog.Warnf("restore: [%s] %s@%d is stale (%ds old), not restored", row.Strategy, row.Asset, row.Epoch, age)
			continue
		}
		dir, ok := decision.ParseDirection(row.Direction)
		if !ok || !dir.Directional() {
			report.Skipped++
			orchLog.Warnf("restore: [%s] %s@%d has no usable direction %q", row.Strategy, row.Asset, row.Epoch, row.Direction)
			continue
		}
		pos := Position{
			Asset:         row.Asset,
			Epoch:         row.Epoch,
			Direction:     dir,
			EntryPrice:    money.FromFloat(row.EntryPrice),
			Size:          money.FromFloat(row.Size),
			Shares:        money.FromFloat(row.Shares),
			Confidence:    row.Confidence,
			WeightedScore: row.WeightedScore,
			Timestamp:     row.CreatedAt,
			TradeID:       row.ID,
		}
		if !s.Restore(pos) {
			report.Skipped++
			orchLog.Warnf("restore: [%s] %s@%d rejected (already open or stake %s exceeds balance)", row.Strategy, row.Asset, row.Epoch, pos.Size.StringFixed(2))
			continue
		}
		o.pending[pos.Key()] = struct{}{}
		report.Restored++
	}
	orchLog.Infof("restored %d open positions (%d stale, %d skipped)", report.Restored, report.Stale, report.Skipped)
	return report
}

func (r RestoreReport) String() string {
	return fmt.Sprintf("restored=%d stale=%d skipped=%d", r.Restored, r.Stale, r.Skipped)
}
