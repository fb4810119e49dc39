package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay from the key map.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	sections := []helpSection{
		{title: "Navigation", bindings: []int{0, 1}},
		{title: "Filters", bindings: []int{2}},
		{title: "Evaluations", bindings: []int{3}},
		{title: "Namespaces", bindings: []int{4}},
		{title: "General", bindings: []int{5}},
	}
	groups := m.keys.FullHelp()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, idx := range section.bindings {
			for _, binding := range groups[idx] {
				h := binding.Help()
				b.WriteString(keyStyle.Render(h.Key))
				b.WriteString(styles.Text.Render(h.Desc))
				b.WriteString("\n")
			}
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	return placeModal(m.theme, m.width, m.height, m.theme.Accent, 44, b.String())
}

type helpSection struct {
	title    string
	bindings []int // indexes into keyMap.FullHelp
}
