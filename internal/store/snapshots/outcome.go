package snapshots

import (
	"context"

	"polyshadow/internal/decision"
	"polyshadow/internal/shadow"
)

// OutcomeSource derives an epoch's result from archived snapshot prices.
type OutcomeSource struct {
	store *Store
}

func NewOutcomeSource(store *Store) *OutcomeSource {
	return &OutcomeSource{store: store}
}

// Resolve compares the earliest and latest priced snapshot of asset@epoch.
// It reports nothing with fewer than two priced snapshots or an unchanged
// price.
func (o *OutcomeSource) Resolve(ctx context.Context, asset string, epoch int64) (shadow.Outcome, bool, error) {
	start, end, n, err := o.store.priceBounds(ctx, asset, epoch)
	if err != nil {
		return shadow.Outcome{}, false, err
	}
	if n < 2 || start == end {
		return shadow.Outcome{}, false, nil
	}
	dir := decision.DirectionDown
	if end > start {
		dir = decision.DirectionUp
	}
	return shadow.Outcome{Direction: dir, StartPrice: start, EndPrice: end}, true, nil
}
