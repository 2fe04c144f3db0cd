package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/defilend/internal/events"
)

func drain() {
	for {
		select {
		case <-Bus:
		default:
			return
		}
	}
}

func TestBridgeEventsFeedsBus(t *testing.T) {
	drain()
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	sub := BridgeEvents(bus)
	require.NoError(t, bus.PublishSync(context.Background(), events.TxConfirmedEvent{BaseEvent: events.NewBase(events.TxConfirmed)}))

	select {
	case msg := <-Bus:
		ev, ok := msg.(EventMsg)
		require.True(t, ok)
		assert.Equal(t, events.TxConfirmed, ev.Event.Type())
	case <-time.After(time.Second):
		t.Fatal("event not bridged")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), events.TxConfirmedEvent{BaseEvent: events.NewBase(events.TxConfirmed)}))
	assert.Empty(t, Bus)
}

func TestSendDropsWhenFull(t *testing.T) {
	drain()
	defer drain()
	for i := 0; i < cap(Bus); i++ {
		require.True(t, Send(RouterMsg{}))
	}
	assert.False(t, Send(RouterMsg{}))
}

type panicky struct{ inView bool }

func (p *panicky) Init() tea.Cmd { return nil }

func (p *panicky) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(EventMsg); ok {
		panic("boom")
	}
	return p, nil
}

func (p *panicky) View() string {
	if p.inView {
		panic("view boom")
	}
	return "ok"
}

func TestSafeModelRecovers(t *testing.T) {
	inner := &panicky{}
	sm := NewSafeModel(inner, zaptest.NewLogger(t))

	next, cmd := sm.Update(EventMsg{})
	assert.Same(t, sm, next)
	assert.NotNil(t, cmd, "bus listener is re-armed")

	_, cmd = sm.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	assert.Equal(t, "ok", sm.View())
	inner.inView = true
	assert.Contains(t, sm.View(), "view crashed")
}

func TestContextualHelpPerRoute(t *testing.T) {
	k := DefaultKeyMap()
	assert.Contains(t, k.ContextualHelp(RouteDashboard), k.Borrow)
	assert.Contains(t, k.ContextualHelp(RouteLogs), k.FilterError)
	assert.Len(t, k.ContextualHelp(Route(42)), 2)
	assert.Equal(t, "history", RouteHistory.String())
}
