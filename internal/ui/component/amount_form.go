package component

import (
	"math/big"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/defilend/internal/ui/style"
	"github.com/rovshanmuradov/defilend/internal/units"
)

// AmountForm is a single token amount input with inline validation.
type AmountForm struct {
	Title string
	Token string

	input   textinput.Model
	focused bool
	err     string

	labelStyle   lipgloss.Style
	inputStyle   lipgloss.Style
	focusedStyle lipgloss.Style
	errorStyle   lipgloss.Style
}

func NewAmountForm(title, token string) *AmountForm {
	palette := style.DefaultPalette()

	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 40
	ti.Width = 18
	ti.Prompt = ""

	return &AmountForm{
		Title: title,
		Token: token,
		input: ti,

		labelStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Bold(true),

		inputStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted),

		focusedStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary),

		errorStyle: lipgloss.NewStyle().
			Foreground(palette.Error),
	}
}

func (f *AmountForm) Focus() tea.Cmd {
	f.focused = true
	return f.input.Focus()
}

func (f *AmountForm) Blur() {
	f.focused = false
	f.input.Blur()
}

func (f *AmountForm) Focused() bool {
	return f.focused
}

// Update feeds key input to the field. Runes other than digits and '.' are
// ignored so letter shortcuts stay available while the form has focus.
func (f *AmountForm) Update(msg tea.Msg) (*AmountForm, tea.Cmd) {
	if !f.focused {
		return f, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyRunes {
		for _, r := range key.Runes {
			if (r < '0' || r > '9') && r != '.' {
				return f, nil
			}
		}
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	f.err = ""
	return f, cmd
}

// Value returns the raw text.
func (f *AmountForm) Value() string {
	return f.input.Value()
}

func (f *AmountForm) SetValue(s string) {
	f.input.SetValue(s)
	f.err = ""
}

// Amount parses the field as a positive 18-decimal amount and shows the
// error inline when it is not one.
func (f *AmountForm) Amount() (*big.Int, bool) {
	v, err := units.ParsePositiveEther(f.input.Value())
	if err != nil {
		f.err = err.Error()
		return nil, false
	}
	f.err = ""
	return v, true
}

func (f *AmountForm) SetError(msg string) {
	f.err = msg
}

func (f *AmountForm) Error() string {
	return f.err
}

func (f *AmountForm) Reset() {
	f.input.Reset()
	f.err = ""
}

func (f *AmountForm) View() string {
	box := f.inputStyle
	if f.focused {
		box = f.focusedStyle
	}
	view := lipgloss.JoinVertical(lipgloss.Left,
		f.labelStyle.Render(f.Title),
		box.Render(f.input.View()+" "+style.MutedStyle.Render(f.Token)),
	)
	if f.err != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, f.errorStyle.Render(f.err))
	}
	return view
}
