package scheduler

import (
	"context"
	"time"

	"hedgebot/internal/logger"
)

// AlignedScheduler runs a task on wall-clock boundaries of Interval, shifted
// by Offset. A rebalance every 60s with offset 5s fires at :05 of each minute
// no matter when the process started, so several accounts started together
// hit the exchange at predictable moments.
//
// The task runs on the scheduler goroutine; a slow task delays the next tick
// instead of overlapping it.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(name string, interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Start blocks until ctx is done.
func (s *AlignedScheduler) Start(ctx context.Context, task func(context.Context)) {
	if s == nil {
		return
	}
	prefix := "AlignedScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("%s: offset=%s out of range, clamp to 0", prefix, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s offset=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		if ctx.Err() != nil {
			return
		}
		task(ctx)
	}

	for {
		now := s.nowFn().UTC()
		wakeAt, wait := s.nextTick(now)
		logger.Debugf("%s: next run at %s (in %s) | uptime=%s",
			prefix,
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("%s: ctx done, exit", prefix)
			return
		case <-timer.C:
		}
		task(ctx)
	}
}

// nextTick returns the first boundary+offset strictly after now.
func (s *AlignedScheduler) nextTick(now time.Time) (time.Time, time.Duration) {
	now = now.UTC()
	wakeAt := now.Truncate(s.Interval).Add(s.Offset)
	if !wakeAt.After(now) {
		wakeAt = wakeAt.Add(s.Interval)
	}
	return wakeAt, wakeAt.Sub(now)
}
