package decision

import (
	"context"
	"errors"
	"fmt"

	"polyshadow/internal/market"

	"golang.org/x/sync/errgroup"
)

var errAgentTimeout = errors.New("agent timed out")

// collectVotes asks every enabled agent concurrently. Failures, panics,
// timeouts and open breakers drop that agent's vote only. The result keeps
// registration order.
func (e *DecisionEngine) collectVotes(ctx context.Context, asset string, epoch int64, mctx market.Context) []Vote {
	type slot struct {
		vote Vote
		ok   bool
	}
	active := make([]Agent, 0, len(e.agents))
	for _, a := range e.agents {
		if e.multiplier(a.Name()) == 0 {
			continue
		}
		active = append(active, a)
	}
	results := make([]slot, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range active {
		i, agent := i, agent
		g.Go(func() error {
			v, err := e.produce(gctx, agent, asset, epoch, mctx)
			if err != nil {
				engineLog.Warnf("[%s] agent %s excluded for %s@%d: %v", e.cfg.Name, agent.Name(), asset, epoch, err)
				return nil
			}
			if e.multiplier(agent.Name()) < 0 {
				v = v.Inverted()
			}
			results[i] = slot{vote: v, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	votes := make([]Vote, 0, len(results))
	for _, r := range results {
		if r.ok {
			votes = append(votes, r.vote)
		}
	}
	return votes
}

func (e *DecisionEngine) produce(ctx context.Context, agent Agent, asset string, epoch int64, mctx market.Context) (Vote, error) {
	var breaker interface {
		Allow() bool
		RecordSuccess()
		RecordFailure()
	}
	if e.breakers != nil {
		b := e.breakers.Get(agent.Name())
		if !b.Allow() {
			return Vote{}, fmt.Errorf("circuit open")
		}
		breaker = b
	}
	v, err := e.produceWithTimeout(ctx, agent, asset, epoch, mctx)
	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	return v, err
}

// produceWithTimeout does not rely on the agent honouring ctx: a hung agent
// forfeits its vote once the deadline passes.
func (e *DecisionEngine) produceWithTimeout(ctx context.Context, agent Agent, asset string, epoch int64, mctx market.Context) (Vote, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AgentTimeout)
	defer cancel()
	type result struct {
		vote Vote
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := agent.Produce(ctx, asset, epoch, mctx.Clone())
		ch <- result{vote: v, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return Vote{}, r.err
		}
		if err := r.vote.check(); err != nil {
			return Vote{}, err
		}
		return r.vote, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Vote{}, fmt.Errorf("%w after %s", errAgentTimeout, e.cfg.AgentTimeout)
		}
		return Vote{}, ctx.Err()
	}
}
