package scheduler

import (
	"context"
	"errors"
	"time"

	"giftbuyer/internal/logger"
)

// Task runs one iteration and returns how long to wait before the next one.
// A zero delay starts the next iteration immediately.
type Task func(ctx context.Context) (time.Duration, error)

// Loop runs a Task back to back until the context is done or the task
// returns an error. Iterations never overlap.
type Loop struct {
	Name string

	ctx   context.Context
	nowFn func() time.Time
	sleep func(context.Context, time.Duration) bool
	wake  <-chan struct{}
}

func NewLoop(ctx context.Context, name string) *Loop {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Loop{
		Name:  name,
		ctx:   ctx,
		nowFn: time.Now,
		sleep: Sleep,
	}
}

// SetWake makes a receive on ch end the current delay early.
func (l *Loop) SetWake(ch <-chan struct{}) {
	l.wake = ch
}

// Start blocks until the loop stops. Cancellation is not an error.
func (l *Loop) Start(task Task) error {
	if l == nil {
		return nil
	}
	if task == nil {
		logger.Warnf("Loop[%s]: task is nil, exit", l.Name)
		return nil
	}
	if l.ctx == nil {
		l.ctx = context.Background()
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}
	if l.sleep == nil {
		l.sleep = Sleep
	}

	startAt := l.nowFn().UTC()
	logger.Infof("Loop[%s]: started at=%s", l.Name, startAt.Format(time.RFC3339))
	var iterations int64
	for {
		if l.ctx.Err() != nil {
			break
		}
		delay, err := task(l.ctx)
		iterations++
		if err != nil {
			if l.ctx.Err() != nil && errors.Is(err, l.ctx.Err()) {
				break
			}
			logger.Errorf("Loop[%s]: stopped after %d iterations: %v", l.Name, iterations, err)
			return err
		}
		if delay > 0 && !l.wait(delay) {
			break
		}
	}
	logger.Infof("Loop[%s]: ctx done, exit after %d iterations | uptime=%s",
		l.Name, iterations, l.nowFn().UTC().Sub(startAt).Truncate(time.Second))
	return nil
}

func (l *Loop) wait(d time.Duration) bool {
	if l.wake == nil {
		return l.sleep(l.ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.ctx.Done():
		return false
	case <-l.wake:
		return true
	case <-timer.C:
		return true
	}
}

// Sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}
