package ui

import (
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SafeModel wraps a model so a panic in Update or View is logged instead of
// tearing down the terminal.
type SafeModel struct {
	model  tea.Model
	logger *zap.Logger
	failed bool
}

func NewSafeModel(model tea.Model, logger *zap.Logger) *SafeModel {
	return &SafeModel{
		model:  model,
		logger: logger.Named("ui"),
	}
}

func (sm *SafeModel) Init() (cmd tea.Cmd) {
	defer sm.recoverFromPanic("Init", true, &cmd)
	return sm.model.Init()
}

func (sm *SafeModel) Update(msg tea.Msg) (m tea.Model, cmd tea.Cmd) {
	m = sm
	_, fromBus := msg.(EventMsg)
	defer sm.recoverFromPanic("Update", fromBus, &cmd)

	if key, ok := msg.(tea.KeyMsg); ok && sm.failed && key.String() == "ctrl+c" {
		return sm, tea.Quit
	}
	next, c := sm.model.Update(msg)
	sm.model = next
	return sm, c
}

func (sm *SafeModel) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			sm.failed = true
			view = "UI Error: view crashed. Press Ctrl+C to exit."
		}
	}()
	return sm.model.View()
}

// recoverFromPanic keeps the bus listener alive when the panicking message
// was the one that would have re-armed it.
func (sm *SafeModel) recoverFromPanic(method string, relisten bool, cmd *tea.Cmd) {
	if r := recover(); r != nil {
		sm.logger.Error("UI method panic recovered",
			zap.String("method", method),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())))
		sm.failed = true
		*cmd = nil
		if relisten {
			*cmd = ListenBus()
		}
	}
}
