package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/defilend/internal/domain"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	bus.SubscribeFunc(TxSubmitted, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(TxSubmittedEvent).Step)
		if len(got) == 3 {
			close(done)
		}
		return nil
	})

	for _, step := range []string{"approve", "repay", "again"} {
		require.NoError(t, bus.Publish(TxSubmittedEvent{BaseEvent: NewBase(TxSubmitted), Step: step}))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("events not delivered")
	}
	mu.Lock()
	assert.Equal(t, []string{"approve", "repay", "again"}, got)
	mu.Unlock()

	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestSubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	var typed, all int
	sub := bus.SubscribeFunc(SnapshotUpdated, func(context.Context, Event) error { typed++; return nil })
	bus.SubscribeFunc(All, func(context.Context, Event) error { all++; return nil })

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, SnapshotUpdatedEvent{BaseEvent: NewBase(SnapshotUpdated), Snapshot: domain.Snapshot{}}))
	require.NoError(t, bus.PublishSync(ctx, SnapshotFailedEvent{BaseEvent: NewBase(SnapshotFailed), Err: errors.New("rpc down")}))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(ctx, SnapshotUpdatedEvent{BaseEvent: NewBase(SnapshotUpdated)}))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 3, all)

	stats := bus.Stats()
	assert.Equal(t, 1, stats.HandlersPerType[string(All)])
	assert.NotContains(t, stats.HandlersPerType, string(SnapshotUpdated))
}

func TestPublishSyncCollectsErrorsAndPanics(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	bus.SubscribeFunc(TxFailed, func(context.Context, Event) error { return boom })
	bus.SubscribeFunc(TxFailed, func(context.Context, Event) error { panic("handler bug") })

	err := bus.PublishSync(context.Background(), TxFailedEvent{BaseEvent: NewBase(TxFailed)})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(TxConfirmedEvent{BaseEvent: NewBase(TxConfirmed)})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestForwardDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	h := Forward(ch)

	e := TxConfirmedEvent{BaseEvent: NewBase(TxConfirmed)}
	require.NoError(t, h.Handle(context.Background(), e))
	require.NoError(t, h.Handle(context.Background(), e))
	assert.Len(t, ch, 1)
}
