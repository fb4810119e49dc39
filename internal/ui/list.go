package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/evalwatch/internal/lmeval"
)

// waitingMessage is shown for evaluations that have not started requesting
// the model yet and carry no status message of their own.
const waitingMessage = "Waiting for server request to start..."

func newProgressBar(theme Theme) progress.Model {
	return progress.New(
		progress.WithSolidFill(theme.StateColor(lmeval.StateInProgress)),
		progress.WithoutPercentage(),
		progress.WithWidth(progressBarWidth),
	)
}

// listTitle shows the visible and total counts plus the active state filter.
func (m Model) listTitle() string {
	total := len(m.listSnap.Data)
	if m.stateFilter == "" && m.filters.Empty() {
		return fmt.Sprintf("Evaluations (%d)", total)
	}
	return fmt.Sprintf("Evaluations (%d/%d) %s", len(m.visible), total, stateFilterLabel(m.stateFilter))
}

// renderList renders the visible evaluations, one per line, scrolled so the
// selection stays on screen.
func (m Model) renderList(width, height int, bgColor string) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(bgColor)

	switch {
	case m.listSnap.Err != nil && len(m.listSnap.Data) == 0:
		return bg.Render(truncate("Unable to load evaluations: "+m.listSnap.Err.Error(), width), styles.DangerText)
	case !m.listSnap.Loaded:
		return bg.Render("Loading evaluations...", styles.MutedText)
	case len(m.listSnap.Data) == 0:
		return bg.Render("No evaluations in "+m.namespace+". Press c to start one.", styles.MutedText)
	case len(m.visible) == 0:
		return bg.Render("No evaluations match the current filters.", styles.MutedText)
	}

	start := 0
	if height > 0 && m.selectedRow >= height {
		start = m.selectedRow - height + 1
	}
	end := len(m.visible)
	if height > 0 {
		end = min(end, start+height)
	}

	lines := make([]string, 0, end-start)
	now := time.Now()
	for i := start; i < end; i++ {
		rowBg := bgColor
		selected := i == m.selectedRow
		if selected {
			rowBg = m.theme.SelectionBg
		}
		content := m.formatRow(m.visible[i], width, rowBg, selected, now)
		lines = append(lines, lipgloss.NewStyle().Background(lipgloss.Color(rowBg)).Width(width).Render(content))
	}
	return strings.Join(lines, "\n")
}

// formatRow renders "Name  [State]  progress-or-message  age".
func (m Model) formatRow(eval lmeval.Evaluation, width int, bgColor string, selected bool, now time.Time) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()

	state := eval.State()
	label := bg.Render(padRight(string(state), 11), lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StateColor(state))))
	age := humanizeDuration(now.Sub(eval.CreationTimestamp.Time))

	nameStyle, noteStyle, ageStyle := styles.Text, styles.MutedText, styles.FaintText
	if selected {
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		nameStyle, noteStyle, ageStyle = sel, sel, sel
	}

	nameWidth := max(width/3, 12)
	fixed := nameWidth + 11 + len(age) + 6
	if m.width >= LayoutModelWidth {
		fixed += 18
	}
	noteWidth := max(width-fixed, 8)

	var status string
	if note, showBar := statusNote(eval); showBar {
		pct := lmeval.ExtractProgress(eval.Status)
		status = m.bar.ViewAs(float64(pct)/100) + bg.Space() + bg.Render(fmt.Sprintf("%3d%%", pct), noteStyle)
	} else if note != "" {
		status = bg.Render(truncate(note, noteWidth), noteStyle)
	}

	parts := []string{
		bg.Render(padRight(truncate(eval.DisplayName(), nameWidth), nameWidth), nameStyle),
		label,
	}
	if m.width >= LayoutModelWidth {
		parts = append(parts, bg.Render(padRight(truncate(eval.Spec.Model, 16), 16), noteStyle))
	}
	parts = append(parts, bg.FillLine(status, noteWidth), bg.Render(age, ageStyle))
	return bg.Join(parts, " ")
}

// statusNote returns the text shown next to the state label, or reports that
// a progress bar should be drawn instead. Running evaluations show the bar once
// the pod is requesting the model; pending, initializing and failed ones show
// the status message; complete ones show nothing.
func statusNote(eval lmeval.Evaluation) (string, bool) {
	state := eval.State()
	if state == lmeval.StateInProgress && lmeval.IsRequestingAPI(eval.Status) {
		return "", true
	}
	switch state {
	case lmeval.StatePending, lmeval.StateInProgress, lmeval.StateFailed:
		if eval.Status != nil && strings.TrimSpace(eval.Status.Message) != "" {
			return eval.Status.Message, false
		}
		return waitingMessage, false
	}
	return "", false
}

// renderTitledBox renders content in a box with the title embedded in the
// top border: ┌─── Title ───┐
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColor, bgColor := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColor, bgColor = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColor)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-4, 1))
	titleLen := len([]rune(title))
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	top := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)
	bottom := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColor))
	lines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	rows := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		rows = append(rows, bg.Render("│", borderStyle)+contentStyle.Render(line)+bg.Render("│", borderStyle))
	}
	return top + "\n" + strings.Join(rows, "\n") + "\n" + bottom
}
