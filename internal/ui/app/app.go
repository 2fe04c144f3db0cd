package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/ui"
	"github.com/rovshanmuradov/defilend/internal/ui/router"
	"github.com/rovshanmuradov/defilend/internal/ui/screen"
)

// Model is the root bubbletea model.
type Model struct {
	router *router.Router
	keyMap ui.KeyMap
	width  int
	height int
}

func New(svc ui.Services) *Model {
	factory := func(route ui.Route) (router.Screen, bool) {
		switch route {
		case ui.RouteDashboard:
			return screen.NewDashboardScreen(svc), true
		case ui.RouteHistory:
			return screen.NewHistoryScreen(svc), true
		case ui.RouteLogs:
			return screen.NewLogsScreen(svc), true
		default:
			return nil, false
		}
	}
	return &Model{
		router: router.New(ui.RouteDashboard, factory),
		keyMap: ui.DefaultKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.router.Init(), ui.ListenBus())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.router.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keyMap.Quit) {
			return m, tea.Quit
		}

	case ui.EventMsg:
		// bus messages go to every screen so the dashboard stays current
		// while another screen is on top
		return m, tea.Batch(m.router.Broadcast(msg), ui.ListenBus())
	}

	_, cmd := m.router.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	return m.router.View()
}

// Route returns the route currently shown.
func (m *Model) Route() ui.Route {
	return m.router.CurrentRoute()
}

// Run bridges bus to the UI and runs the program until the user quits or
// ctx is canceled.
func Run(ctx context.Context, svc ui.Services, bus *events.Bus, logger *zap.Logger) error {
	if svc.Ctx == nil {
		svc.Ctx = ctx
	}
	if bus != nil {
		sub := ui.BridgeEvents(bus)
		defer sub.Unsubscribe()
	}

	program := tea.NewProgram(
		ui.NewSafeModel(New(svc), logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	logger.Info("Starting dashboard")
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	logger.Info("Dashboard closed")
	return nil
}
