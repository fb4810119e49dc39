package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/evalwatch/internal/lmeval"
)

// Modal is the interface for modal dialogs.
// Update returns the updated modal, a command, and whether the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmDelete asks before deleting one evaluation.
type confirmDelete struct {
	ctx    context.Context
	client lmeval.Fetcher
	ref    lmeval.Ref
	label  string
}

func newConfirmDelete(ctx context.Context, client lmeval.Fetcher, eval lmeval.Evaluation) *confirmDelete {
	return &confirmDelete{ctx: ctx, client: client, ref: eval.Ref(), label: eval.DisplayName()}
}

func (c *confirmDelete) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(keyMsg, keys.Yes):
		return c, deleteCmd(c.ctx, c.client, c.ref), true
	case key.Matches(keyMsg, keys.Escape), keyMsg.String() == "n", keyMsg.String() == "N":
		return c, nil, true
	}
	return c, nil, false
}

func (c *confirmDelete) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.DangerText.Render("Delete evaluation?"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.label))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(c.ref.String()))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render("y") + styles.MutedText.Render(" delete   ") +
		styles.AccentText.Render("n/esc") + styles.MutedText.Render(" cancel"))

	return placeModal(theme, width, height, theme.Danger, 48, b.String())
}

// placeModal centers a bordered box over the screen.
func placeModal(theme Theme, width, height int, border string, boxWidth int, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Width(boxWidth)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
