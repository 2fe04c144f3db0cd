package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
)

const DefaultInterval = 4 * time.Second

// SnapshotSource reads the current position.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// PositionMonitor re-reads the position on a fixed interval and publishes
// every result on the event bus.
type PositionMonitor struct {
	source    SnapshotSource
	interval  time.Duration
	publisher events.Publisher
	logger    *zap.Logger
	refresh   chan struct{}

	mu      sync.RWMutex
	last    *domain.Snapshot
	lastErr error
	polls   uint64
}

func NewPositionMonitor(source SnapshotSource, interval time.Duration, publisher events.Publisher, logger *zap.Logger) *PositionMonitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PositionMonitor{
		source:    source,
		interval:  interval,
		publisher: publisher,
		logger:    logger.Named("position-monitor"),
		refresh:   make(chan struct{}, 1),
	}
}

// Run polls until ctx is canceled. The first poll happens immediately.
func (pm *PositionMonitor) Run(ctx context.Context) {
	pm.logger.Debug("Starting position monitor", zap.Duration("interval", pm.interval))

	pm.update(ctx)

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pm.logger.Debug("Position monitor stopped")
			return
		case <-ticker.C:
			pm.update(ctx)
		case <-pm.refresh:
			pm.update(ctx)
			ticker.Reset(pm.interval)
		}
	}
}

// Refresh requests an immediate poll. Requests made while one is pending are merged.
func (pm *PositionMonitor) Refresh() {
	select {
	case pm.refresh <- struct{}{}:
	default:
	}
}

// Last returns the most recent successful snapshot.
func (pm *PositionMonitor) Last() (domain.Snapshot, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.last == nil {
		return domain.Snapshot{}, false
	}
	return *pm.last, true
}

// Err returns the error of the latest poll, nil after a success.
func (pm *PositionMonitor) Err() error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastErr
}

func (pm *PositionMonitor) update(ctx context.Context) {
	snap, err := pm.source.Snapshot(ctx)
	if ctx.Err() != nil {
		return
	}

	pm.mu.Lock()
	wasFailing := pm.lastErr != nil
	pm.polls++
	pm.lastErr = err
	if err == nil {
		pm.last = &snap
	}
	pm.mu.Unlock()

	if err != nil {
		if wasFailing {
			pm.logger.Debug("Position refresh still failing", zap.Error(err))
		} else {
			pm.logger.Warn("Position refresh failed", zap.Error(err))
		}
		pm.publish(events.SnapshotFailedEvent{BaseEvent: events.NewBase(events.SnapshotFailed), Err: err})
		return
	}

	if wasFailing {
		pm.logger.Info("Position refresh recovered")
	}
	pm.publish(events.SnapshotUpdatedEvent{BaseEvent: events.NewBase(events.SnapshotUpdated), Snapshot: snap})
}

func (pm *PositionMonitor) publish(e events.Event) {
	if pm.publisher == nil {
		return
	}
	_ = pm.publisher.Publish(e)
}
