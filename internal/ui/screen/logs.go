package screen

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/defilend/internal/logger"
	"github.com/rovshanmuradov/defilend/internal/ui"
	"github.com/rovshanmuradov/defilend/internal/ui/component"
	"github.com/rovshanmuradov/defilend/internal/ui/router"
	"github.com/rovshanmuradov/defilend/internal/ui/style"
)

const (
	logsRefreshInterval = time.Second
	logsFetchLimit      = 500
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3, "dpanic": 4, "panic": 4, "fatal": 4}

type logsTickMsg struct{}

// LogsScreen tails the in-memory log buffer.
type LogsScreen struct {
	buffer  *logger.LogBuffer
	keyMap  ui.KeyMap
	helpBar *component.HelpBar

	entries  []logger.LogEntry
	minLevel string
	scroll   int // lines up from the newest entry
	width    int
	height   int
}

func NewLogsScreen(svc ui.Services) *LogsScreen {
	s := &LogsScreen{
		buffer:   svc.Logs,
		keyMap:   ui.DefaultKeyMap(),
		helpBar:  component.NewHelpBar(),
		minLevel: "debug",
	}
	s.helpBar.SetKeyBindings(s.keyMap.ContextualHelp(ui.RouteLogs))
	return s
}

func (s *LogsScreen) Init() tea.Cmd {
	s.reload()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(logsRefreshInterval, func(time.Time) tea.Msg { return logsTickMsg{} })
}

func (s *LogsScreen) reload() {
	if s.buffer == nil {
		return
	}
	s.entries = s.buffer.GetRecentLogs(logsFetchLimit)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Timestamp.Before(s.entries[j].Timestamp)
	})
}

func (s *LogsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.helpBar.SetWidth(width)
}

func (s *LogsScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case logsTickMsg:
		s.reload()
		return s, tick()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keyMap.FilterAll):
			s.setLevel("debug")
		case key.Matches(msg, s.keyMap.FilterInfo):
			s.setLevel("info")
		case key.Matches(msg, s.keyMap.FilterWarn):
			s.setLevel("warn")
		case key.Matches(msg, s.keyMap.FilterError):
			s.setLevel("error")
		case key.Matches(msg, s.keyMap.Up):
			s.scroll++
		case key.Matches(msg, s.keyMap.Down):
			if s.scroll > 0 {
				s.scroll--
			}
		}
	}
	return s, nil
}

func (s *LogsScreen) setLevel(level string) {
	s.minLevel = level
	s.scroll = 0
}

// Filtered returns the entries at or above the selected level, oldest first.
func (s *LogsScreen) Filtered() []logger.LogEntry {
	floor := levelRank[s.minLevel]
	out := make([]logger.LogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if levelRank[strings.ToLower(e.Level)] >= floor {
			out = append(out, e)
		}
	}
	return out
}

func levelStyle(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error", "dpanic", "panic", "fatal":
		return style.ErrorStyle
	case "warn":
		return style.WarningStyle
	case "info":
		return style.InfoStyle
	default:
		return style.MutedStyle
	}
}

func (s *LogsScreen) View() string {
	header := style.HeaderStyle.Render(fmt.Sprintf("Logs · level ≥ %s", s.minLevel))

	entries := s.Filtered()
	visible := max(s.height-8, 5)
	end := len(entries) - s.scroll
	if end < 0 {
		end = 0
	}
	start := max(end-visible, 0)

	lines := make([]string, 0, visible)
	for _, e := range entries[start:end] {
		line := style.MutedStyle.Render(e.Timestamp.Format("15:04:05.000")) + " " +
			levelStyle(e.Level).Render(fmt.Sprintf("%-5s", strings.ToUpper(e.Level))) + " "
		if e.Logger != "" {
			line += style.LabelStyle.Render(e.Logger) + " "
		}
		line += e.Message
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += style.MutedStyle.Render(fmt.Sprintf(" %s=%v", k, e.Fields[k]))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, style.MutedStyle.Render("no log entries"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), s.helpBar.View())
}
