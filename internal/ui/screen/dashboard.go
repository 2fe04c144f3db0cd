package screen

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/health"
	"github.com/rovshanmuradov/defilend/internal/ui"
	"github.com/rovshanmuradov/defilend/internal/ui/component"
	"github.com/rovshanmuradov/defilend/internal/ui/router"
	"github.com/rovshanmuradov/defilend/internal/ui/style"
)

const maxActivity = 6

// DashboardScreen shows the position and the four action forms.
type DashboardScreen struct {
	svc    ui.Services
	keyMap ui.KeyMap
	logger *zap.Logger

	width  int
	height int

	forms   []*component.AmountForm
	ops     []domain.Operation
	focus   int
	helpBar *component.HelpBar

	snap     *domain.Snapshot
	snapErr  error
	busy     bool
	running  domain.Operation
	outcome  *domain.Outcome
	activity []string
}

func NewDashboardScreen(svc ui.Services) *DashboardScreen {
	s := &DashboardScreen{
		svc:     svc,
		keyMap:  ui.DefaultKeyMap(),
		logger:  svc.Logger.Named("dashboard"),
		helpBar: component.NewHelpBar(),
		ops:     domain.Operations,
	}
	for _, op := range s.ops {
		s.forms = append(s.forms, component.NewAmountForm(op.Title(), op.Token()))
	}
	s.forms[0].Focus()
	s.helpBar.SetKeyBindings(s.keyMap.ContextualHelp(ui.RouteDashboard))
	return s
}

func (s *DashboardScreen) Init() tea.Cmd {
	if s.svc.Position != nil {
		if snap, ok := s.svc.Position.Last(); ok && s.snap == nil {
			s.snap = &snap
		}
	}
	return nil
}

func (s *DashboardScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.helpBar.SetWidth(width)
}

func (s *DashboardScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.EventMsg:
		s.handleEvent(msg.Event)
		return s, nil

	case ui.OutcomeMsg:
		s.busy = false
		o := msg.Outcome
		s.outcome = &o
		if o.OK() {
			s.forms[s.indexOf(o.Operation)].Reset()
		}
		if s.svc.Position != nil {
			s.svc.Position.Refresh()
		}
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *DashboardScreen) handleKey(msg tea.KeyMsg) (router.Screen, tea.Cmd) {
	switch {
	case key.Matches(msg, s.keyMap.Tab), key.Matches(msg, s.keyMap.Down):
		return s, s.focusForm((s.focus + 1) % len(s.forms))
	case key.Matches(msg, s.keyMap.ShiftTab), key.Matches(msg, s.keyMap.Up):
		return s, s.focusForm((s.focus + len(s.forms) - 1) % len(s.forms))
	case key.Matches(msg, s.keyMap.AddCollateral):
		return s, s.focusForm(s.indexOf(domain.OpAddCollateral))
	case key.Matches(msg, s.keyMap.Borrow):
		return s, s.focusForm(s.indexOf(domain.OpBorrow))
	case key.Matches(msg, s.keyMap.Repay):
		return s, s.focusForm(s.indexOf(domain.OpRepay))
	case key.Matches(msg, s.keyMap.Withdraw):
		return s, s.focusForm(s.indexOf(domain.OpWithdrawCollateral))
	case key.Matches(msg, s.keyMap.Refresh):
		if s.svc.Position != nil {
			s.svc.Position.Refresh()
		}
		return s, nil
	case key.Matches(msg, s.keyMap.History):
		return s, ui.Navigate(ui.RouteHistory)
	case key.Matches(msg, s.keyMap.Logs):
		return s, ui.Navigate(ui.RouteLogs)
	case key.Matches(msg, s.keyMap.Enter):
		return s, s.submit()
	}

	form, cmd := s.forms[s.focus].Update(msg)
	s.forms[s.focus] = form
	return s, cmd
}

func (s *DashboardScreen) focusForm(i int) tea.Cmd {
	s.forms[s.focus].Blur()
	s.focus = i
	return s.forms[i].Focus()
}

func (s *DashboardScreen) indexOf(op domain.Operation) int {
	for i, o := range s.ops {
		if o == op {
			return i
		}
	}
	return 0
}

// submit validates the focused form and runs the action in the background.
// Only one action runs at a time.
func (s *DashboardScreen) submit() tea.Cmd {
	form := s.forms[s.focus]
	if s.busy {
		form.SetError("another action is in progress")
		return nil
	}
	if s.svc.Lending.ReadOnly() {
		form.SetError(domain.ErrReadOnly.Error())
		return nil
	}
	amt, ok := form.Amount()
	if !ok {
		return nil
	}

	op := s.ops[s.focus]
	s.busy = true
	s.running = op
	s.outcome = nil
	s.activity = nil
	s.logger.Debug("Submitting action", zap.String("operation", string(op)), zap.String("amount", amt.String()))

	ctx := s.svc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	lending := s.svc.Lending
	return func() tea.Msg {
		return ui.OutcomeMsg{Outcome: lending.Execute(ctx, op, new(big.Int).Set(amt))}
	}
}

func (s *DashboardScreen) handleEvent(e events.Event) {
	switch ev := e.(type) {
	case events.SnapshotUpdatedEvent:
		snap := ev.Snapshot
		s.snap = &snap
		s.snapErr = nil
	case events.SnapshotFailedEvent:
		s.snapErr = ev.Err
	case events.TxSubmittedEvent:
		s.addActivity(fmt.Sprintf("%s sent %s", ev.Step, shortHash(ev.TxHash.Hex())))
	case events.TxConfirmedEvent:
		s.addActivity(fmt.Sprintf("%s confirmed in block %d", ev.Result.Label, ev.Result.Block))
	case events.TxFailedEvent:
		s.addActivity(fmt.Sprintf("%s failed: %s", ev.Result.Label, ev.Result.Kind))
	}
}

func (s *DashboardScreen) addActivity(line string) {
	s.activity = append(s.activity, time.Now().Format("15:04:05")+" "+line)
	if len(s.activity) > maxActivity {
		s.activity = s.activity[len(s.activity)-maxActivity:]
	}
}

func (s *DashboardScreen) View() string {
	sections := []string{
		s.renderHeader(),
		style.AdaptiveJoinHorizontal(s.width, s.renderAccount(), s.renderProtocol()),
		s.renderForms(),
		s.renderStatus(),
		s.helpBar.View(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (s *DashboardScreen) renderHeader() string {
	title := "DeFiLend · " + s.svc.Lending.Account().Hex()
	if s.svc.Lending.ReadOnly() {
		title += " " + style.WarningStyle.Render("[read-only]")
	}
	var status string
	switch {
	case s.snapErr != nil:
		status = style.ErrorStyle.Render("refresh failed: " + s.snapErr.Error())
	case s.snap != nil:
		status = style.MutedStyle.Render("updated " + s.snap.FetchedAt.Format("15:04:05"))
	default:
		status = style.MutedStyle.Render("loading…")
	}
	return style.HeaderStyle.Render(title) + "\n" + status
}

func row(label, value string) string {
	return style.LabelStyle.Width(22).Render(label) + style.ValueStyle.Render(value)
}

func (s *DashboardScreen) renderAccount() string {
	lines := []string{style.SubHeaderStyle.Render("Account")}
	if s.snap == nil {
		lines = append(lines, style.MutedStyle.Render("no data yet"))
		return style.PanelStyle.Render(strings.Join(lines, "\n"))
	}
	snap := s.snap

	contract := style.Badge("unknown", false, false)
	if snap.ContractHealthKnown {
		contract = style.Badge(health.Label(snap.ContractHealthy), snap.ContractHealthy, true)
	}
	ltc := "—"
	if snap.LTC != nil {
		ltc = snap.LTC.String()
	}

	lines = append(lines,
		row("Collateral", amount(snap.Collateral, "CLT")),
		row("Loan", amount(snap.Loan, "BFI")),
		row("CLT balance", amount(snap.CollateralBalance, "CLT")),
		row("BFI balance", amount(snap.BorrowBalance, "BFI")),
		row("LTC", ltc),
		row("Contract health", contract),
		row("Simulated health", style.Badge(health.Label(snap.SimulatedHealthy), snap.SimulatedHealthy, true)),
		row("Loan / collateral", ratio(snap.SimulatedRatio)+style.MutedStyle.Render(" (healthy ≥ "+threshold()+")")),
	)
	return style.PanelStyle.Render(strings.Join(lines, "\n"))
}

func (s *DashboardScreen) renderProtocol() string {
	lines := []string{style.SubHeaderStyle.Render("Protocol")}
	if s.snap == nil {
		lines = append(lines, style.MutedStyle.Render("no data yet"))
		return style.PanelStyle.Render(strings.Join(lines, "\n"))
	}
	snap := s.snap
	lines = append(lines,
		row("Available to borrow", amount(snap.AvailableBorrow, "BFI")),
		row("Residual collateral", amount(snap.ResidualCollateral, "CLT")),
		row("Total borrowed", amount(snap.TotalBorrowed, "BFI")),
		row("Total collateral", amount(snap.TotalCollateral, "CLT")),
		row("CLT allowance", amount(snap.CollateralAllowance, "CLT")),
		row("BFI allowance", amount(snap.BorrowAllowance, "BFI")),
	)
	return style.PanelStyle.Render(strings.Join(lines, "\n"))
}

func (s *DashboardScreen) renderForms() string {
	views := make([]string, len(s.forms))
	for i, f := range s.forms {
		panel := style.PanelStyle
		if i == s.focus {
			panel = style.ActivePanelStyle
		}
		views[i] = panel.Render(f.View())
	}
	return style.AdaptiveJoinHorizontal(s.width, views...)
}

func (s *DashboardScreen) renderStatus() string {
	var lines []string
	if s.busy {
		lines = append(lines, style.InfoStyle.Render(s.running.Title()+" in progress…"))
	}
	for _, a := range s.activity {
		lines = append(lines, style.MutedStyle.Render(a))
	}
	if s.outcome != nil {
		lines = append(lines, renderOutcome(*s.outcome))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func renderOutcome(o domain.Outcome) string {
	if o.OK() {
		last, _ := o.Last()
		return style.SuccessStyle.Render(fmt.Sprintf("✓ %s %s confirmed (%s)",
			o.Operation.Title(), amount(o.Amount, o.Operation.Token()), shortHash(last.TxHash.Hex())))
	}
	return style.ErrorStyle.Render(fmt.Sprintf("✗ %s failed [%s]: %v", o.Operation.Title(), o.Kind(), o.Error()))
}
