package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	loop := NewLoop(ctx, "test")
	err := loop.Start(func(ctx context.Context) (time.Duration, error) {
		runs++
		if runs == 3 {
			cancel()
			return 0, ctx.Err()
		}
		return 0, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, runs)
}

func TestLoopReturnsTaskError(t *testing.T) {
	boom := errors.New("boom")
	loop := NewLoop(context.Background(), "test")
	err := loop.Start(func(context.Context) (time.Duration, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestLoopHonoursDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	loop := NewLoop(ctx, "test")
	loop.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return len(delays) < 2
	}
	err := loop.Start(func(context.Context) (time.Duration, error) { return 50 * time.Millisecond, nil })
	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, delays)
}

func TestLoopWakeCutsDelayShort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wake := make(chan struct{}, 1)
	runs := 0
	loop := NewLoop(ctx, "test")
	loop.SetWake(wake)
	done := make(chan error, 1)
	go func() {
		done <- loop.Start(func(context.Context) (time.Duration, error) {
			runs++
			if runs == 2 {
				cancel()
				return 0, ctx.Err()
			}
			wake <- struct{}{}
			return time.Hour, nil
		})
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, 2, runs)
	case <-time.After(5 * time.Second):
		t.Fatal("wake did not end the delay")
	}
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
	assert.False(t, Sleep(ctx, 0))
}
