package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/evalwatch/internal/lmeval"
)

// resultsParseError is shown when a results document cannot be decoded.
const resultsParseError = "Unable to parse evaluation results"

type metadataRow struct {
	key   string
	value string
}

func (m Model) detailTitle() string {
	if m.selected.Empty() {
		return "Details"
	}
	return "Details: " + m.selected.Name
}

// renderDetailContent renders the selected evaluation for the detail viewport.
func (m Model) renderDetailContent(width int) string {
	styles := m.theme.Styles()
	eval, ok := m.selectedEvaluation()
	if !ok {
		return styles.MutedText.Render("Select an evaluation")
	}

	var b strings.Builder
	now := time.Now()

	state := eval.State()
	b.WriteString(styles.Text.Bold(true).Render(eval.DisplayName()))
	b.WriteString("  ")
	b.WriteString(styles.StateLabel(state).Render(string(state)))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(eval.Ref().String()))
	b.WriteString("\n\n")

	if m.detailSnap.Err != nil && m.detailSnap.Data == nil {
		b.WriteString(styles.WarningText.Render(truncate("Refresh failed: "+errorText(m.detailSnap.Err), width)))
		b.WriteString("\n\n")
	}

	m.renderStatusSection(&b, eval, width, styles)
	m.renderSpecSection(&b, eval, styles, now)
	m.renderResultsSection(&b, eval, width, styles)
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatusSection(b *strings.Builder, eval lmeval.Evaluation, width int, styles Styles) {
	b.WriteString(styles.AccentText.Bold(true).Render("Status"))
	b.WriteString("\n")
	rows := []metadataRow{{"Status", lmeval.StatusMessage(eval.Status)}}
	if s := eval.Status; s != nil {
		if s.Message != "" && s.Message != rows[0].value {
			rows = append(rows, metadataRow{"Message", s.Message})
		}
		if s.PodName != "" {
			rows = append(rows, metadataRow{"Pod", s.PodName})
		}
		if s.LastScheduleTime != nil {
			rows = append(rows, metadataRow{"Scheduled", formatTimestamp(s.LastScheduleTime.Time, time.Now())})
		}
		if s.CompleteTime != nil {
			rows = append(rows, metadataRow{"Completed", formatTimestamp(s.CompleteTime.Time, time.Now())})
		}
	}
	m.renderMetadata(b, rows, width, styles)

	if bar, ok := lmeval.RequestingAPIBar(eval.Status); ok {
		pct := lmeval.ExtractProgress(eval.Status)
		line := m.bar.ViewAs(float64(pct)/100) + " " + styles.Text.Render(fmt.Sprintf("%d%%", pct))
		if bar.Count != "" {
			line += "  " + styles.MutedText.Render(bar.Count)
		}
		if bar.RemainingTimeEstimate != "" {
			line += "  " + styles.FaintText.Render("ETA "+bar.RemainingTimeEstimate)
		}
		b.WriteString(padRight(lmeval.RequestingAPIMarker, 12))
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (m Model) renderSpecSection(b *strings.Builder, eval lmeval.Evaluation, styles Styles, now time.Time) {
	b.WriteString(styles.AccentText.Bold(true).Render("Configuration"))
	b.WriteString("\n")
	rows := []metadataRow{
		{"Model", eval.Spec.Model},
		{"Tasks", strings.Join(eval.Tasks(), ", ")},
		{"Created", humanizeDuration(now.Sub(eval.CreationTimestamp.Time))},
	}
	if eval.Spec.BatchSize != "" {
		rows = append(rows, metadataRow{"Batch size", eval.Spec.BatchSize})
	}
	rows = append(rows,
		metadataRow{"Remote code", strconv.FormatBool(eval.Spec.AllowCodeExecution)},
		metadataRow{"Online", strconv.FormatBool(eval.Spec.AllowOnline)},
	)
	for _, arg := range eval.Spec.ModelArgs {
		rows = append(rows, metadataRow{"  " + arg.Name, arg.Value})
	}
	m.renderMetadata(b, rows, 0, styles)
	b.WriteString("\n")
}

// renderResultsSection renders one row per task metric with its stderr.
func (m Model) renderResultsSection(b *strings.Builder, eval lmeval.Evaluation, width int, styles Styles) {
	if eval.Status == nil || strings.TrimSpace(eval.Status.Results) == "" {
		if eval.State() == lmeval.StateComplete {
			b.WriteString(styles.MutedText.Render("No results reported"))
			b.WriteString("\n")
		}
		return
	}

	b.WriteString(styles.AccentText.Bold(true).Render("Results"))
	b.WriteString("\n")

	rows, err := lmeval.ParseResults(eval.Status.Results)
	if err != nil {
		b.WriteString(styles.DangerText.Render(resultsParseError))
		b.WriteString("\n")
		return
	}

	taskWidth := 12
	for _, r := range rows {
		taskWidth = max(taskWidth, len(r.Task)+1)
	}
	if width > 0 {
		taskWidth = min(taskWidth, width/2)
	}
	header := padRight("Task", taskWidth) + padRight("Metric", 12) + padRight("Value", 10) + "Error"
	b.WriteString(styles.MutedText.Render(header))
	b.WriteString("\n")

	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Success))
	for _, r := range rows {
		stderr := "-"
		if r.Error != nil {
			stderr = fmt.Sprintf("±%.4f", *r.Error)
		}
		b.WriteString(styles.Text.Render(padRight(truncate(r.Task, taskWidth-1), taskWidth)))
		b.WriteString(styles.Text.Render(padRight(r.Metric, 12)))
		b.WriteString(valueStyle.Render(padRight(fmt.Sprintf("%.4f", r.Value), 10)))
		b.WriteString(styles.FaintText.Render(stderr))
		b.WriteString("\n")
	}
}

func (m Model) renderMetadata(b *strings.Builder, rows []metadataRow, width int, styles Styles) {
	for _, row := range rows {
		if strings.TrimSpace(row.value) == "" {
			continue
		}
		value := row.value
		if width > 14 {
			value = truncate(value, width-12)
		}
		b.WriteString(styles.MutedText.Render(padRight(row.key, 12)))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
}
