package component

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(f *AmountForm, s string) {
	for _, r := range s {
		f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestAmountFormAcceptsOnlyNumericInput(t *testing.T) {
	f := NewAmountForm("Borrow", "BFI")
	f.Focus()

	typeText(f, "1a.5b")
	assert.Equal(t, "1.5", f.Value())

	v, ok := f.Amount()
	require.True(t, ok)
	assert.Equal(t, "1500000000000000000", v.String())
	assert.Empty(t, f.Error())
}

func TestAmountFormIgnoresInputWhenBlurred(t *testing.T) {
	f := NewAmountForm("Borrow", "BFI")
	typeText(f, "12")
	assert.Empty(t, f.Value())
}

func TestAmountFormRejectsInvalidAmounts(t *testing.T) {
	f := NewAmountForm("Repay", "BFI")
	for _, in := range []string{"", "0", "0.000", "1.2.3", "0.0000000000000000001"} {
		f.SetValue(in)
		_, ok := f.Amount()
		assert.False(t, ok, in)
		assert.NotEmpty(t, f.Error(), in)
		assert.Contains(t, f.View(), f.Error())
	}

	f.Reset()
	assert.Empty(t, f.Value())
	assert.Empty(t, f.Error())
}

func TestTableSelectionScrolls(t *testing.T) {
	tbl := NewTable(TableColumn{Header: "n", Width: 4})
	var rows []TableRow
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, TableRow{Data: []string{s}})
	}
	tbl.SetRows(rows).SetHeight(2)

	tbl.MoveDown().MoveDown().MoveDown()
	assert.Equal(t, 3, tbl.Selected())
	view := tbl.View()
	assert.Contains(t, view, "d")
	assert.NotContains(t, view, "a")

	tbl.MoveUp().MoveUp().MoveUp().MoveUp()
	assert.Equal(t, 0, tbl.Selected())

	tbl.MoveDown().MoveDown().MoveDown().MoveDown()
	tbl.SetRows(rows[:2])
	assert.Equal(t, 1, tbl.Selected())
}

func TestRenderCellTruncates(t *testing.T) {
	tbl := NewTable(TableColumn{Header: "hash", Width: 6})
	tbl.SetRows([]TableRow{{Data: []string{"0x1234567890"}}})
	assert.Contains(t, tbl.View(), "0x123…")
}

func TestHelpBarSkipsDisabledBindings(t *testing.T) {
	on := key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
	off := key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hidden"), key.WithDisabled())

	view := NewHelpBar().SetKeyBindings([]key.Binding{on, off}).View()
	assert.Contains(t, view, "refresh")
	assert.NotContains(t, view, "hidden")
	assert.Empty(t, NewHelpBar().View())
}
