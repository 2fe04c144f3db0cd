package style

import (
	"github.com/charmbracelet/lipgloss"
)

var palette = DefaultPalette()

var (
	HeaderStyle = lipgloss.NewStyle().
			Background(palette.Background).
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 2).
			Margin(0, 0, 1, 0)

	SubHeaderStyle = lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			Margin(0, 0, 1, 0)

	LabelStyle = lipgloss.NewStyle().
			Foreground(palette.TextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(palette.Text).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(palette.TextMuted)
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 1).
			Margin(0, 1, 0, 0)

	ActivePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(palette.Primary).
				Padding(0, 1).
				Margin(0, 1, 0, 0)
)

var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(palette.Warning).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(palette.Info)
)

var (
	badge = lipgloss.NewStyle().
		Foreground(palette.Background).
		Padding(0, 1).
		Bold(true)

	HealthyBadge   = badge.Background(palette.Healthy)
	UnhealthyBadge = badge.Background(palette.Unhealthy)
	UnknownBadge   = badge.Background(palette.Unknown)
)

// Badge renders a health label with the matching color. known=false renders
// the unknown badge regardless of healthy.
func Badge(label string, healthy, known bool) string {
	switch {
	case !known:
		return UnknownBadge.Render(label)
	case healthy:
		return HealthyBadge.Render(label)
	default:
		return UnhealthyBadge.Render(label)
	}
}

// AdaptiveJoinHorizontal stacks blocks vertically on narrow screens.
func AdaptiveJoinHorizontal(width int, blocks ...string) string {
	if width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, blocks...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

func AdaptiveWidth(width, percentage int) int {
	if width < 80 {
		return width - 4
	}
	return (width * percentage) / 100
}
