package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsDueTasks(t *testing.T) {
	s := New(WithTick(5 * time.Millisecond))

	var runs atomic.Int32
	s.Every(10 * time.Millisecond).Name("tick").Run(func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSchedulerWithoutOverlapping(t *testing.T) {
	s := New(WithTick(2 * time.Millisecond))

	var active, maxActive atomic.Int32
	release := make(chan struct{})
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(context.Context) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		<-release
		active.Add(-1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return active.Load() == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	cancel()
	<-done

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := New(WithTick(2 * time.Millisecond))

	var runs atomic.Int32
	s.Every(time.Millisecond).Run(func(context.Context) {
		runs.Add(1)
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestList(t *testing.T) {
	s := New()
	s.Every(time.Minute).Name("reconcile").Run(func(context.Context) {})
	s.Every(time.Hour).Run(func(context.Context) {})

	assert.Equal(t, []string{"reconcile  [1m0s]", "task-2  [1h0m0s]"}, s.List())
}
