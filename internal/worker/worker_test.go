package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodic_FirstPassRunsImmediately(t *testing.T) {
	ran := make(chan struct{})
	p := NewPeriodic("test", time.Hour, nil, func(ctx context.Context) error {
		close(ran)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not run before the interval elapsed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}

func TestPeriodic_TicksUntilStopped(t *testing.T) {
	var passes atomic.Int32
	p := NewPeriodic("test", 10*time.Millisecond, nil, func(ctx context.Context) error {
		passes.Add(1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return passes.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	p.Stop()
	<-done

	settled := passes.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, passes.Load(), "no passes after Stop")
}

func TestPeriodic_StopWaitsForInFlightPass(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	p := NewPeriodic("test", time.Hour, nil, func(ctx context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	go p.Start(context.Background())
	<-started

	stopDone := make(chan struct{})
	go func() {
		p.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the pass finished")
	}
	assert.True(t, finished.Load())
}

func TestPeriodic_StopIsIdempotent(t *testing.T) {
	p := NewPeriodic("test", time.Hour, nil, func(ctx context.Context) error { return nil })

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	p.Stop()
	p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after Stop")
	}
}

func TestPeriodic_Name(t *testing.T) {
	p := NewPeriodic("outbox-sweep", time.Second, nil, func(ctx context.Context) error { return nil })
	assert.Equal(t, "outbox-sweep", p.Name())
}
