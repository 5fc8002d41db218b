package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalScheduler_RunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(ctx, time.Hour)
	s.RunImmediately = true

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			runs.Add(1)
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not exit after cancellation")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestIntervalScheduler_Ticks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewIntervalScheduler(ctx, 10*time.Millisecond)

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not exit after cancellation")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestIntervalScheduler_InvalidInterval(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), 0)
	ran := false
	s.Start(func() { ran = true }) // returns immediately
	assert.False(t, ran)
}
