// Package resolver settles closed epochs on an epoch-aligned schedule.
package resolver

import (
	"context"
	"fmt"
	"time"

	"polyshadow/internal/logger"
	"polyshadow/internal/scheduler"
	"polyshadow/internal/shadow"
)

var resolverLog = logger.With("resolver")

const (
	DefaultEpoch          = 15 * time.Minute
	DefaultOffset         = 30 * time.Second
	DefaultLookbackEpochs = 8
)

// Orchestrator is the part of shadow.Orchestrator the resolver drives.
type Orchestrator interface {
	PendingEpochs() []shadow.EpochKey
	OnEpochResolution(ctx context.Context, asset string, epoch int64, outcome shadow.Outcome) ([]shadow.Resolution, error)
	DropPending(key shadow.EpochKey) int
}

// OutcomeSource reports the actual result of an epoch, or ok=false when it
// is not known yet.
type OutcomeSource interface {
	Resolve(ctx context.Context, asset string, epoch int64) (outcome shadow.Outcome, ok bool, err error)
}

type Config struct {
	Epoch          time.Duration
	Offset         time.Duration
	LookbackEpochs int
	Now            func() time.Time
}

// Stats summarises one pass.
type Stats struct {
	Resolved int
	Waiting  int
	Dropped  int
	Voided   int
	Failed   int
}

func (s Stats) String() string {
	return fmt.Sprintf("resolved=%d waiting=%d dropped=%d voided=%d failed=%d", s.Resolved, s.Waiting, s.Dropped, s.Voided, s.Failed)
}

type Resolver struct {
	orch   Orchestrator
	source OutcomeSource
	cfg    Config
}

func New(orch Orchestrator, source OutcomeSource, cfg Config) (*Resolver, error) {
	if orch == nil || source == nil {
		return nil, fmt.Errorf("resolver requires an orchestrator and an outcome source")
	}
	if cfg.Epoch <= 0 {
		cfg.Epoch = DefaultEpoch
	}
	if cfg.Offset < 0 {
		cfg.Offset = 0
	}
	if cfg.LookbackEpochs <= 0 {
		cfg.LookbackEpochs = DefaultLookbackEpochs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{orch: orch, source: source, cfg: cfg}, nil
}

// Run resolves once immediately and then after every epoch boundary until
// ctx is done.
func (r *Resolver) Run(ctx context.Context) error {
	sched := scheduler.NewAlignedScheduler(ctx, r.cfg.Epoch, r.cfg.Offset)
	sched.Name = "resolver"
	sched.RunImmediately = true
	sched.Start(func() {
		st := r.RunOnce(ctx)
		if st != (Stats{}) {
			resolverLog.Infof("pass done: %s", st)
		}
	})
	return ctx.Err()
}

// RunOnce settles every pending key whose epoch has closed. Keys that stay
// unresolved for more than LookbackEpochs epochs are dropped.
func (r *Resolver) RunOnce(ctx context.Context) Stats {
	var st Stats
	now := r.cfg.Now()
	for _, key := range r.orch.PendingEpochs() {
		if ctx.Err() != nil {
			return st
		}
		if !scheduler.EpochClosed(key.Epoch, r.cfg.Epoch, now) {
			continue
		}
		expired := scheduler.EpochsBehind(key.Epoch, r.cfg.Epoch, now) > int64(r.cfg.LookbackEpochs)

		outcome, ok, err := r.source.Resolve(ctx, key.Asset, key.Epoch)
		if err != nil {
			resolverLog.Warnf("outcome %s@%d: %v", key.Asset, key.Epoch, err)
		}
		if err != nil || !ok {
			if expired {
				resolverLog.Warnf("drop %s@%d: no outcome after %d epochs", key.Asset, key.Epoch, r.cfg.LookbackEpochs)
				st.Voided += r.orch.DropPending(key)
				st.Dropped++
			} else if err != nil {
				st.Failed++
			} else {
				st.Waiting++
			}
			continue
		}

		res, err := r.orch.OnEpochResolution(ctx, key.Asset, key.Epoch, outcome)
		if err != nil {
			resolverLog.Errorf("resolve %s@%d: %v", key.Asset, key.Epoch, err)
			st.Failed++
			continue
		}
		resolverLog.Infof("resolved %s@%d %s (%d positions)", key.Asset, key.Epoch, outcome.Direction, len(res))
		st.Resolved++
	}
	return st
}
