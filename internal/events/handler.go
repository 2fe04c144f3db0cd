// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events. Handle runs on the bus worker and should not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Forward returns a handler that copies events to ch, dropping them when ch is full.
func Forward(ch chan<- Event) Handler {
	return HandlerFunc(func(_ context.Context, event Event) error {
		select {
		case ch <- event:
		default:
		}
		return nil
	})
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
