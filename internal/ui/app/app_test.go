package app

import (
	"context"
	"math/big"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/ui"
)

type stubLending struct{}

func (stubLending) Account() common.Address { return common.HexToAddress("0x01") }
func (stubLending) ReadOnly() bool          { return true }
func (stubLending) Execute(context.Context, domain.Operation, *big.Int) domain.Outcome {
	return domain.Outcome{}
}

func newModel(t *testing.T) *Model {
	m := New(ui.Services{Ctx: context.Background(), Lending: stubLending{}, Logger: zaptest.NewLogger(t)})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestModelNavigation(t *testing.T) {
	m := newModel(t)
	assert.Equal(t, ui.RouteDashboard, m.Route())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'L'}})
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, ui.RouteLogs, m.Route())
	assert.Contains(t, m.View(), "Logs")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ui.RouteDashboard, m.Route())
}

func TestModelQuit(t *testing.T) {
	m := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelBroadcastsEvents(t *testing.T) {
	m := newModel(t)
	m.Update(ui.RouterMsg{To: ui.RouteLogs})

	snap := domain.Snapshot{Loan: big.NewInt(0).Mul(big.NewInt(4), big.NewInt(1e18))}
	m.Update(ui.EventMsg{Event: events.SnapshotUpdatedEvent{BaseEvent: events.NewBase(events.SnapshotUpdated), Snapshot: snap}})

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Contains(t, m.View(), "4 BFI")
}

func TestViewBeforeSize(t *testing.T) {
	m := New(ui.Services{Lending: stubLending{}, Logger: zaptest.NewLogger(t)})
	assert.Equal(t, "Initializing...", m.View())
}
