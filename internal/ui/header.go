package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/evalwatch/internal/filter"
	"github.com/five82/evalwatch/internal/lmeval"
)

// renderHeader renders the status bar: namespace, per-state counts and
// backend health.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render("evalwatch", styles.Logo)}

	ns := m.namespace
	if ns == "" {
		ns = "(none)"
	}
	parts = append(parts, bg.Render("ns:", styles.MutedText)+bg.Space()+bg.Render(ns, styles.AccentText))

	snap := m.listSnap
	switch {
	case snap.IsOffline():
		parts = append(parts, bg.Render("● "+classifyConnectionError(snap.Err), styles.DangerText))
		parts = append(parts, bg.Render("Retrying...", styles.WarningText.Bold(true)))
	case !snap.Loaded && m.namespace != "":
		parts = append(parts, bg.Render("Loading...", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("● ON", styles.SuccessText))
	}

	if snap.Loaded {
		counts := countStates(snap.Data)
		for _, s := range lmeval.States {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StateColor(s)))
			parts = append(parts,
				bg.Render(string(s)+":", styles.MutedText)+bg.Space()+
					bg.Render(fmt.Sprintf("%d", counts[s]), style))
		}
	}

	if m.width >= LayoutModelWidth {
		if !snap.LastUpdated.IsZero() {
			parts = append(parts, bg.Render(formatTimestamp(snap.LastUpdated, time.Now()), styles.FaintText))
		}
		if m.apiURL != "" {
			parts = append(parts, bg.Render(truncate(m.apiURL, 40), styles.FaintText))
		}
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
}

// renderCommandBar renders key hints, the filter prompt or a status message.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	colon := bg.Sep(":")

	if m.filtering {
		label := "name"
		if m.filterKey == filter.Model {
			label = "model"
		}
		prompt := bg.Render("Filter "+label+":", styles.AccentText) + bg.Space() + m.filterInput.View() +
			bg.Spaces(2) + bg.Render("enter", styles.AccentText) + colon + bg.Render("keep", styles.MutedText) +
			bg.Spaces(2) + bg.Render("esc", styles.AccentText) + colon + bg.Render("clear", styles.MutedText)
		return styles.Header.Width(m.width).Render(prompt)
	}

	type cmd struct{ key, desc string }
	var commands []cmd
	if m.focusedPane == paneDetail {
		commands = []cmd{
			{"j/k", "Scroll"},
			{"g/G", "Top/Bottom"},
			{"esc", "Back"},
			{"x", "Delete"},
			{"?", "More"},
		}
	} else {
		commands = []cmd{
			{"f", stateFilterLabel(m.stateFilter)},
			{"/", "Name"},
			{"m", "Model"},
			{"c", "New"},
			{"x", "Delete"},
			{"[/]", "Namespace"},
			{"Tab", "Focus"},
			{"?", "More"},
		}
	}

	segments := make([]string, 0, len(commands)+3)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	if active := m.activeFilterSummary(); active != "" {
		segments = append(segments, bg.Render(active, styles.WarningText))
	}
	if m.flash != "" {
		style := styles.InfoText
		if m.flashErr {
			style = styles.DangerText
		}
		segments = append(segments, bg.Render(truncate(m.flash, 60), style))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

func (m Model) activeFilterSummary() string {
	var parts []string
	for _, k := range filter.Keys {
		if v := m.filters.Get(k); v != "" {
			parts = append(parts, string(k)+"~"+v)
		}
	}
	return strings.Join(parts, " ")
}

// renderMain renders the list and detail panes side by side, or only the
// focused pane on narrow terminals.
func (m Model) renderMain() string {
	height := m.contentHeight()
	listWidth, detailWidth := m.paneWidths()

	if m.namespace == "" {
		msg := m.theme.Styles().MutedText.Render("No namespace available. Press [ or ] once namespaces load.")
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, msg)
	}

	detail := m.renderTitledBox(m.detailTitle(), m.detailView.View(), detailWidth, height, m.focusedPane == paneDetail)
	if m.width < LayoutCompactWidth && m.focusedPane == paneDetail {
		return detail
	}

	listBg := m.theme.SurfaceAlt
	if m.focusedPane == paneList {
		listBg = m.theme.FocusBg
	}
	list := m.renderTitledBox(m.listTitle(), m.renderList(listWidth-2, height-2, listBg), listWidth, height, m.focusedPane == paneList)
	if m.width < LayoutCompactWidth {
		return list
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

// classifyConnectionError returns a short description of a poll failure.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

func countStates(items []lmeval.Evaluation) map[lmeval.State]int {
	counts := make(map[lmeval.State]int, len(lmeval.States))
	for _, e := range items {
		counts[e.State()]++
	}
	return counts
}
