package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/five82/evalwatch/internal/lmeval"
)

// errorText is the user-facing text for err. API errors show the server's
// message without the request method and path.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *lmeval.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return err.Error()
}

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// padRight pads a string with spaces to the given width.
func padRight(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(r))
}

// humanizeDuration formats a duration as relative time (e.g. "5m ago").
func humanizeDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatTimestamp formats t as a clock time today, or with the date otherwise.
func formatTimestamp(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.In(time.Local)
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04:05")
	}
	return local.Format("Jan 02 15:04")
}
