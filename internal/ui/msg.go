package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
)

// RouterMsg represents navigation between screens
type RouterMsg struct {
	To Route
}

// EventMsg wraps an event bus event for the UI
type EventMsg struct {
	Event events.Event
}

// OutcomeMsg carries the result of a user action started from a form
type OutcomeMsg struct {
	Outcome domain.Outcome
}

// HistoryMsg carries history records loaded for the history screen
type HistoryMsg struct {
	Records []*models.TxRecord
	Err     error
}

// Bus is the global channel feeding the bubbletea program.
var Bus = make(chan tea.Msg, 1024)

// Send delivers msg to the UI without blocking. It reports false when the
// bus is full and msg was dropped.
func Send(msg tea.Msg) bool {
	select {
	case Bus <- msg:
		return true
	default:
		return false
	}
}

// PublishEvent forwards an event bus event to the UI.
func PublishEvent(event events.Event) {
	Send(EventMsg{Event: event})
}

// BridgeEvents subscribes the UI to every event of bus.
func BridgeEvents(bus *events.Bus) events.Subscription {
	return bus.SubscribeFunc(events.All, func(_ context.Context, e events.Event) error {
		PublishEvent(e)
		return nil
	})
}

// ListenBus returns a tea.Cmd that waits for the next bus message
func ListenBus() tea.Cmd {
	return func() tea.Msg {
		return <-Bus
	}
}

// Navigate returns a command switching to route.
func Navigate(route Route) tea.Cmd {
	return func() tea.Msg {
		return RouterMsg{To: route}
	}
}

// Route represents different screens in the application
type Route int

const (
	RouteDashboard Route = iota
	RouteHistory
	RouteLogs
)

func (r Route) String() string {
	switch r {
	case RouteDashboard:
		return "dashboard"
	case RouteHistory:
		return "history"
	case RouteLogs:
		return "logs"
	default:
		return "unknown"
	}
}
