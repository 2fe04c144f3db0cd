package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
)

type stubSource struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (s *stubSource) Snapshot(context.Context) (domain.Snapshot, error) {
	n := s.calls.Add(1)
	if s.fail.Load() {
		return domain.Snapshot{}, errors.New("rpc down")
	}
	return domain.Snapshot{Loan: big.NewInt(n), FetchedAt: time.Now()}, nil
}

type chanPublisher struct {
	mu sync.Mutex
	ch chan events.Event
}

func (p *chanPublisher) Publish(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch <- e
	return nil
}

func next(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestPositionMonitorPollsImmediatelyAndOnTick(t *testing.T) {
	src := &stubSource{}
	pub := &chanPublisher{ch: make(chan events.Event, 16)}
	pm := NewPositionMonitor(src, 20*time.Millisecond, pub, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pm.Run(ctx)
		close(done)
	}()

	first := next(t, pub.ch)
	require.Equal(t, events.SnapshotUpdated, first.Type())
	assert.Equal(t, int64(1), first.(events.SnapshotUpdatedEvent).Snapshot.Loan.Int64())

	second := next(t, pub.ch)
	assert.Equal(t, events.SnapshotUpdated, second.Type())

	last, ok := pm.Last()
	require.True(t, ok)
	assert.GreaterOrEqual(t, last.Loan.Int64(), int64(2))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestPositionMonitorRefreshAndFailure(t *testing.T) {
	src := &stubSource{}
	pub := &chanPublisher{ch: make(chan events.Event, 16)}
	pm := NewPositionMonitor(src, time.Hour, pub, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pm.Run(ctx)

	next(t, pub.ch)

	src.fail.Store(true)
	pm.Refresh()
	failed := next(t, pub.ch)
	require.Equal(t, events.SnapshotFailed, failed.Type())
	assert.EqualError(t, failed.(events.SnapshotFailedEvent).Err, "rpc down")

	// the last good snapshot survives a failed poll
	_, ok := pm.Last()
	assert.True(t, ok)

	src.fail.Store(false)
	pm.Refresh()
	assert.Equal(t, events.SnapshotUpdated, next(t, pub.ch).Type())
	assert.Equal(t, int64(3), src.calls.Load())
}

func TestLastBeforeFirstPoll(t *testing.T) {
	pm := NewPositionMonitor(&stubSource{}, 0, nil, zaptest.NewLogger(t))
	_, ok := pm.Last()
	assert.False(t, ok)
	assert.Equal(t, DefaultInterval, pm.interval)
}
