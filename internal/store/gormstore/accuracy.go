package gormstore

import (
	"context"
	"fmt"
	"time"

	"polyshadow/internal/decision"

	"github.com/tidwall/gjson"
)

var _ decision.AccuracySource = (*GormStore)(nil)

type voteOutcomeRow struct {
	Agent       string `gorm:"column:agent"`
	Asset       string `gorm:"column:asset"`
	Epoch       int64  `gorm:"column:epoch"`
	Direction   string `gorm:"column:direction"`
	Actual      string `gorm:"column:actual"`
	ContextJSON []byte `gorm:"column:context_json"`
}

// Every strategy logs the same agent vote, so samples are deduplicated per
// (agent, asset, epoch). Inverted rows carry a strategy's flip, not the
// agent's opinion.
const voteOutcomeSQL = `
SELECT v.agent, v.asset, v.epoch, v.direction, m.direction AS actual, d.context_json
FROM agent_votes v
JOIN market_outcomes m ON m.asset = v.asset AND m.epoch = v.epoch
LEFT JOIN decisions d ON d.id = v.decision_id
WHERE v.created_at >= ? AND v.inverted = ? AND v.direction IN ('Up', 'Down')
ORDER BY v.id`

// AgentAccuracy scores each agent's directional votes since the given time
// against market_outcomes, grouped overall and by the decision's regime.
func (s *GormStore) AgentAccuracy(ctx context.Context, since time.Time) (map[string]decision.AccuracyStats, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var rows []voteOutcomeRow
	err := s.withRetry(ctx, "agent accuracy", func() error {
		rows = rows[:0]
		return s.db.WithContext(ctx).Raw(voteOutcomeSQL, since.Unix(), false).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	type key struct {
		agent, asset string
		epoch        int64
	}
	seen := make(map[key]bool, len(rows))
	out := make(map[string]decision.AccuracyStats)
	for _, r := range rows {
		k := key{r.Agent, r.Asset, r.Epoch}
		if seen[k] {
			continue
		}
		seen[k] = true
		correct := r.Direction == r.Actual
		st := out[r.Agent]
		st.Samples++
		if correct {
			st.Correct++
		}
		if regime := gjson.GetBytes(r.ContextJSON, "regime").String(); regime != "" {
			if st.Regimes == nil {
				st.Regimes = make(map[string]decision.SampleCount)
			}
			rc := st.Regimes[regime]
			rc.Samples++
			if correct {
				rc.Correct++
			}
			st.Regimes[regime] = rc
		}
		out[r.Agent] = st
	}
	return out, nil
}
