package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts for the application
type KeyMap struct {
	Quit key.Binding
	Back key.Binding

	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Tab      key.Binding
	ShiftTab key.Binding

	Refresh key.Binding
	History key.Binding
	Logs    key.Binding

	// form shortcuts on the dashboard
	AddCollateral key.Binding
	Borrow        key.Binding
	Repay         key.Binding
	Withdraw      key.Binding

	FilterAll   key.Binding
	FilterInfo  key.Binding
	FilterWarn  key.Binding
	FilterError key.Binding
}

// DefaultKeyMap returns the default key bindings. Letter keys never collide
// with amount input, which only accepts digits and a dot.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "refresh"),
		),
		History: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "history"),
		),
		Logs: key.NewBinding(
			key.WithKeys("L", "f12"),
			key.WithHelp("L", "logs"),
		),

		AddCollateral: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add collateral"),
		),
		Borrow: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "borrow"),
		),
		Repay: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "repay"),
		),
		Withdraw: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "withdraw"),
		),

		FilterAll: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "all"),
		),
		FilterInfo: key.NewBinding(
			key.WithKeys("1", "f1"),
			key.WithHelp("1", "info+"),
		),
		FilterWarn: key.NewBinding(
			key.WithKeys("2", "f2"),
			key.WithHelp("2", "warn+"),
		),
		FilterError: key.NewBinding(
			key.WithKeys("3", "f3"),
			key.WithHelp("3", "error"),
		),
	}
}

// ContextualHelp returns help text based on the current route
func (k KeyMap) ContextualHelp(route Route) []key.Binding {
	switch route {
	case RouteDashboard:
		return []key.Binding{k.Tab, k.Enter, k.AddCollateral, k.Borrow, k.Repay, k.Withdraw, k.Refresh, k.History, k.Logs, k.Quit}
	case RouteHistory:
		return []key.Binding{k.Up, k.Down, k.Refresh, k.Back, k.Quit}
	case RouteLogs:
		return []key.Binding{k.FilterAll, k.FilterInfo, k.FilterWarn, k.FilterError, k.Up, k.Down, k.Back, k.Quit}
	default:
		return []key.Binding{k.Back, k.Quit}
	}
}
