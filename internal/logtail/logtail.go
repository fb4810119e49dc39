package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := range count {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one decoded line of the dashboard's JSON log.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Caller  string
	Message string
	Fields  map[string]any
}

// Keys written by internal/logging.
const (
	keyTime    = "timestamp"
	keyLevel   = "level"
	keyLogger  = "logger"
	keyCaller  = "caller"
	keyMessage = "message"
	keyStack   = "stacktrace"
)

// Parse decodes a JSON log line. Lines that are not JSON objects, or carry no
// message, report false.
func Parse(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &raw); err != nil {
		return Entry{}, false
	}
	msg, ok := raw[keyMessage].(string)
	if !ok {
		return Entry{}, false
	}
	e := Entry{Message: msg, Level: zapcore.InfoLevel}
	if s, ok := raw[keyLevel].(string); ok {
		if lvl, err := zapcore.ParseLevel(s); err == nil {
			e.Level = lvl
		}
	}
	if s, ok := raw[keyTime].(string); ok {
		e.Time = parseTime(s)
	}
	e.Logger, _ = raw[keyLogger].(string)
	e.Caller, _ = raw[keyCaller].(string)

	for _, k := range []string{keyTime, keyLevel, keyLogger, keyCaller, keyMessage, keyStack} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}
	return e, true
}

func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000Z0700", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Filter keeps lines at or above minLevel. Lines that do not parse are kept so
// nothing written by hand or by a crash disappears.
func Filter(lines []string, minLevel zapcore.Level) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if e, ok := Parse(line); ok && e.Level < minLevel {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Palette colors formatted entries. The zero value renders plain text.
type Palette struct {
	Time    lipgloss.Style
	Logger  lipgloss.Style
	Field   lipgloss.Style
	Levels  map[zapcore.Level]lipgloss.Style
	enabled bool
}

// DefaultPalette matches the dashboard's default colors.
func DefaultPalette() Palette {
	return Palette{
		Time:   lipgloss.NewStyle().Foreground(lipgloss.Color("#71839b")),
		Logger: lipgloss.NewStyle().Foreground(lipgloss.Color("#719cd6")),
		Field:  lipgloss.NewStyle().Foreground(lipgloss.Color("#aeafb0")),
		Levels: map[zapcore.Level]lipgloss.Style{
			zapcore.DebugLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#63cdcf")),
			zapcore.InfoLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#81b29a")).Bold(true),
			zapcore.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#dbc074")).Bold(true),
			zapcore.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#c94f6d")).Bold(true),
		},
		enabled: true,
	}
}

func (p Palette) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}

func (p Palette) level(l zapcore.Level) string {
	text := fmt.Sprintf("%-5s", l.CapitalString())
	style, ok := p.Levels[l]
	if !ok {
		style = p.Levels[zapcore.ErrorLevel]
	}
	return p.render(style, text)
}

// Format renders e on one line as "time LEVEL logger message key=value".
func Format(e Entry, p Palette) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(p.render(p.Time, e.Time.Local().Format("2006-01-02 15:04:05")))
		b.WriteByte(' ')
	}
	b.WriteString(p.level(e.Level))
	if e.Logger != "" {
		b.WriteByte(' ')
		b.WriteString(p.render(p.Logger, "["+e.Logger+"]"))
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(p.render(p.Field, fmt.Sprintf("%s=%v", k, e.Fields[k])))
	}
	return b.String()
}

// FormatLines formats every line that parses and passes the rest through.
func FormatLines(lines []string, p Palette) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if e, ok := Parse(line); ok {
			out[i] = Format(e, p)
		} else {
			out[i] = line
		}
	}
	return out
}
