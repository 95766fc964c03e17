package decision

import (
	"context"
	"fmt"

	"polyshadow/internal/market"
)

// CheckVetoes asks every veto agent. Any veto blocks; every reason is kept.
// A panicking veto agent counts as a veto so a broken guard fails closed.
func CheckVetoes(ctx context.Context, vetoAgents []VetoAgent, asset string, mctx market.Context) (bool, []string) {
	var reasons []string
	for _, va := range vetoAgents {
		if va == nil {
			continue
		}
		blocked, reason := safeVeto(ctx, va, asset, mctx)
		if !blocked {
			continue
		}
		if reason == "" {
			reason = "vetoed"
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", va.Name(), reason))
	}
	return len(reasons) > 0, reasons
}

func safeVeto(ctx context.Context, va VetoAgent, asset string, mctx market.Context) (blocked bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			engineLog.Errorf("veto agent %s panic: %v", va.Name(), r)
			blocked, reason = true, fmt.Sprintf("veto check panicked: %v", r)
		}
	}()
	return va.CanVeto(ctx, asset, mctx)
}
