package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *countingGenerator) GenerateSlots(ctx context.Context) (int, error) {
	g.calls.Add(1)
	return 0, g.err
}

func TestSchedulerRunsImmediatelyAndPeriodically(t *testing.T) {
	gen := &countingGenerator{}
	s := NewScheduler(gen, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())

	require.Eventually(t, func() bool { return gen.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := gen.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, gen.calls.Load())

	// Повторная остановка безопасна
	assert.NotPanics(t, s.Stop)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	gen := &countingGenerator{err: errors.New("store unavailable")}
	s := NewScheduler(gen, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	gen := &countingGenerator{}
	s := NewScheduler(gen, time.Hour, zap.NewNop())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a scheduler that was never started")
	}

	// Start после Stop сразу выходит по закрытому stopChan
	s.Start(context.Background())
	require.Eventually(t, func() bool {
		select {
		case <-s.done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestSchedulerStartTwiceRunsOneLoop(t *testing.T) {
	gen := &countingGenerator{}
	s := NewScheduler(gen, time.Hour, zap.NewNop())

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return gen.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, int32(1), gen.calls.Load())
}
