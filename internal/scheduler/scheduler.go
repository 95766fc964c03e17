package scheduler

import (
	"context"
	"time"

	"polyshadow/internal/logger"
)

var schedLog = logger.With("scheduler")

// AlignedScheduler runs a task Offset after every epoch boundary.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is done.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil {
		return
	}
	prefix := "AlignedScheduler"
	if s.Name != "" {
		prefix += "[" + s.Name + "]"
	}
	if task == nil {
		schedLog.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		schedLog.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 {
		schedLog.Warnf("%s: negative offset=%s, clamp to 0", prefix, s.Offset)
		s.Offset = 0
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	schedLog.Infof("%s: started interval=%s offset=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn().UTC()
		nextClose, wakeAt, wait := s.nextTimes(now)
		schedLog.Debugf("%s: epoch closes at %s, next run %s (in %s) | uptime=%s",
			prefix,
			nextClose.Format(time.RFC3339),
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				schedLog.Infof("%s: ctx done, exit", prefix)
				return
			case <-timer.C:
			}
		} else if s.ctx.Err() != nil {
			return
		}
		task()
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (nextClose, wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	nextClose = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = nextClose.Add(s.Offset)
	// still inside the offset window of the boundary that just passed
	if prev := nextClose.Add(-s.Interval).Add(s.Offset); prev.After(now) {
		wakeAt = prev
		nextClose = prev.Add(-s.Offset)
	}
	return nextClose, wakeAt, wakeAt.Sub(now)
}
