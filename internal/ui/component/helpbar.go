package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/defilend/internal/ui/style"
)

// HelpBar renders key bindings on one line, wrapping when it does not fit.
type HelpBar struct {
	bindings []key.Binding
	width    int

	keyStyle       lipgloss.Style
	descStyle      lipgloss.Style
	sepStyle       lipgloss.Style
	containerStyle lipgloss.Style
}

func NewHelpBar() *HelpBar {
	palette := style.DefaultPalette()

	return &HelpBar{
		width: 80,

		keyStyle: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),

		descStyle: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		sepStyle: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		containerStyle: lipgloss.NewStyle().
			Padding(0, 1).
			Margin(1, 0, 0, 0),
	}
}

func (h *HelpBar) SetKeyBindings(bindings []key.Binding) *HelpBar {
	h.bindings = bindings
	return h
}

func (h *HelpBar) SetWidth(width int) *HelpBar {
	if width > 0 {
		h.width = width
	}
	return h
}

func (h *HelpBar) View() string {
	var items []string
	for _, b := range h.bindings {
		if !b.Enabled() {
			continue
		}
		help := b.Help()
		items = append(items, h.keyStyle.Render(help.Key)+" "+h.descStyle.Render(help.Desc))
	}
	if len(items) == 0 {
		return ""
	}

	sep := h.sepStyle.Render(" • ")
	maxWidth := h.width - 4

	var (
		lines []string
		line  string
	)
	for _, item := range items {
		switch {
		case line == "":
			line = item
		case lipgloss.Width(line+sep+item) > maxWidth:
			lines = append(lines, line)
			line = item
		default:
			line += sep + item
		}
	}
	lines = append(lines, line)

	return h.containerStyle.Render(strings.Join(lines, "\n"))
}
