package decision

import (
	"context"
	"fmt"

	"polyshadow/internal/market"
	"polyshadow/internal/pkg/maputil"
)

// Agent produces one Vote per (asset, epoch). Implementations must be safe
// for concurrent use: the same agent is shared by every strategy.
type Agent interface {
	Name() string
	Produce(ctx context.Context, asset string, epoch int64, mctx market.Context) (Vote, error)
}

// VetoAgent can block an otherwise approved trade. A type may implement both
// Agent and VetoAgent; the engine picks up the capability at registration.
type VetoAgent interface {
	Name() string
	CanVeto(ctx context.Context, asset string, mctx market.Context) (bool, string)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc struct {
	AgentName string
	Fn        func(ctx context.Context, asset string, epoch int64, mctx market.Context) (Vote, error)
}

func (a AgentFunc) Name() string { return a.AgentName }

func (a AgentFunc) Produce(ctx context.Context, asset string, epoch int64, mctx market.Context) (Vote, error) {
	return a.Fn(ctx, asset, epoch, mctx)
}

// VetoFunc adapts a function to the VetoAgent interface.
type VetoFunc struct {
	AgentName string
	Fn        func(ctx context.Context, asset string, mctx market.Context) (bool, string)
}

func (v VetoFunc) Name() string { return v.AgentName }

func (v VetoFunc) CanVeto(ctx context.Context, asset string, mctx market.Context) (bool, string) {
	return v.Fn(ctx, asset, mctx)
}

// ContextAgent reads a vote computed by an external producer from the tick
// payload under agent_votes.<name>.
type ContextAgent struct {
	AgentName string
}

func (a ContextAgent) Name() string { return a.AgentName }

func (a ContextAgent) Produce(_ context.Context, asset string, epoch int64, mctx market.Context) (Vote, error) {
	votes, ok := mctx.Section(market.KeyAgentVotes)
	if !ok {
		return Vote{}, fmt.Errorf("%s: no agent_votes in context for %s@%d", a.AgentName, asset, epoch)
	}
	entry, ok := maputil.Map(votes, a.AgentName)
	if !ok {
		return Vote{}, fmt.Errorf("%s: no vote supplied for %s@%d", a.AgentName, asset, epoch)
	}
	dir, ok := ParseDirection(maputil.String(entry, "direction"))
	if !ok {
		return Vote{}, &InvalidVoteError{Agent: a.AgentName, Field: "direction", Value: entry["direction"]}
	}
	confidence, _ := maputil.Float(entry, "confidence")
	quality, hasQuality := maputil.Float(entry, "quality")
	if !hasQuality {
		quality = 1
	}
	details, _ := maputil.Map(entry, "details")
	return NewVote(a.AgentName, dir, confidence, quality, maputil.String(entry, "reasoning"), details)
}

// ContextVeto reads vetoes.<name> = {veto: bool, reason: string} from the tick payload.
// A missing entry never vetoes.
type ContextVeto struct {
	AgentName string
}

func (v ContextVeto) Name() string { return v.AgentName }

func (v ContextVeto) CanVeto(_ context.Context, _ string, mctx market.Context) (bool, string) {
	vetoes, ok := mctx.Section(market.KeyVetoes)
	if !ok {
		return false, ""
	}
	entry, ok := maputil.Map(vetoes, v.AgentName)
	if !ok {
		return false, ""
	}
	if !maputil.Bool(entry, "veto") {
		return false, ""
	}
	reason := maputil.String(entry, "reason")
	if reason == "" {
		reason = "vetoed"
	}
	return true, reason
}
