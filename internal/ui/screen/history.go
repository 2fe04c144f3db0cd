package screen

import (
	"context"
	"fmt"
	"math/big"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
	"github.com/rovshanmuradov/defilend/internal/ui"
	"github.com/rovshanmuradov/defilend/internal/ui/component"
	"github.com/rovshanmuradov/defilend/internal/ui/router"
	"github.com/rovshanmuradov/defilend/internal/ui/style"
	"github.com/rovshanmuradov/defilend/internal/units"
)

const historyLimit = 100

// HistoryScreen lists the account's recorded transactions, newest first.
type HistoryScreen struct {
	svc     ui.Services
	keyMap  ui.KeyMap
	table   *component.Table
	helpBar *component.HelpBar

	records []*models.TxRecord
	err     error
	loading bool
	width   int
	height  int
}

func NewHistoryScreen(svc ui.Services) *HistoryScreen {
	s := &HistoryScreen{
		svc:    svc,
		keyMap: ui.DefaultKeyMap(),
		table: component.NewTable(
			component.TableColumn{Header: "Time", Width: 19},
			component.TableColumn{Header: "Operation", Width: 19},
			component.TableColumn{Header: "Step", Width: 19},
			component.TableColumn{Header: "Amount", Width: 14, Align: lipgloss.Right},
			component.TableColumn{Header: "Status", Width: 9},
			component.TableColumn{Header: "Failure", Width: 16},
			component.TableColumn{Header: "Tx", Width: 13},
		),
		helpBar: component.NewHelpBar(),
	}
	s.helpBar.SetKeyBindings(s.keyMap.ContextualHelp(ui.RouteHistory))
	return s
}

func (s *HistoryScreen) Init() tea.Cmd {
	return s.load()
}

func (s *HistoryScreen) load() tea.Cmd {
	if s.svc.History == nil {
		s.err = fmt.Errorf("history store is not configured")
		return nil
	}
	s.loading = true
	ctx := s.svc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	history := s.svc.History
	account := s.svc.Lending.Account().Hex()
	return func() tea.Msg {
		records, err := history.ListTransactions(ctx, account, historyLimit, 0)
		return ui.HistoryMsg{Records: records, Err: err}
	}
}

func (s *HistoryScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.helpBar.SetWidth(width)
	s.table.SetHeight(height - 10)
}

func (s *HistoryScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.HistoryMsg:
		s.loading = false
		s.err = msg.Err
		if msg.Err == nil {
			s.records = msg.Records
			s.table.SetRows(historyRows(msg.Records))
		}
	case ui.EventMsg:
		switch msg.Event.Type() {
		case events.OperationCompleted, events.OperationFailed:
			return s, s.load()
		}
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keyMap.Up):
			s.table.MoveUp()
		case key.Matches(msg, s.keyMap.Down):
			s.table.MoveDown()
		case key.Matches(msg, s.keyMap.Refresh):
			return s, s.load()
		}
	}
	return s, nil
}

func historyRows(records []*models.TxRecord) []component.TableRow {
	ok := style.SuccessStyle.Padding(0, 1)
	bad := style.ErrorStyle.Padding(0, 1)

	rows := make([]component.TableRow, 0, len(records))
	for _, r := range records {
		amt := r.Amount
		if v, parsed := new(big.Int).SetString(r.Amount, 10); parsed {
			amt = units.FormatEther(v)
		}
		row := component.TableRow{Data: []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Operation,
			r.Step,
			amt,
			r.Status,
			r.FailureKind,
			shortHash(r.TxHash),
		}}
		if r.Status == models.StatusFailed {
			row.Style = &bad
		} else {
			row.Style = &ok
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *HistoryScreen) View() string {
	header := style.HeaderStyle.Render("Transaction history")

	var body string
	switch {
	case s.err != nil:
		body = style.ErrorStyle.Render("failed to load history: " + s.err.Error())
	case s.loading && len(s.records) == 0:
		body = style.MutedStyle.Render("loading…")
	case len(s.records) == 0:
		body = style.MutedStyle.Render("no transactions yet")
	default:
		body = s.table.View() + "\n" + style.MutedStyle.Render(fmt.Sprintf("%d/%d", s.table.Selected()+1, s.table.RowCount()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, s.helpBar.View())
}
