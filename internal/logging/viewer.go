package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time    string
	Level   string
	Message string
	Attrs   map[string]any
}

// ParseEntry decodes a JSON log line written by Setup.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	e := Entry{Attrs: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case slog.TimeKey:
			e.Time, _ = v.(string)
		case slog.LevelKey:
			e.Level, _ = v.(string)
		case slog.MessageKey:
			e.Message, _ = v.(string)
		default:
			e.Attrs[k] = v
		}
	}
	return e, true
}

// Tail returns the last n entries of path at or above minLevel. Lines that
// are not JSON are skipped.
func Tail(path string, n int, minLevel string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return tailReader(f, n, ParseLevel(minLevel))
}

func tailReader(r io.Reader, n int, min slog.Level) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		e, ok := ParseEntry(scanner.Text())
		if !ok || ParseLevel(e.Level) < min {
			continue
		}
		entries = append(entries, e)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	return entries, scanner.Err()
}

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	timeStyle  = lipgloss.NewStyle().Faint(true)
)

// Format renders an entry as one line. color enables level styling.
func Format(e Entry, color bool) string {
	ts := e.Time
	if len(ts) >= 19 {
		ts = ts[11:19]
	}
	level := fmt.Sprintf("%-5s", strings.ToUpper(e.Level))

	var b strings.Builder
	if color {
		b.WriteString(timeStyle.Render(ts))
		b.WriteString(" ")
		b.WriteString(levelStyle(e.Level).Render(level))
	} else {
		b.WriteString(ts)
		b.WriteString(" ")
		b.WriteString(level)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

func levelStyle(level string) lipgloss.Style {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return debugStyle
	case slog.LevelWarn:
		return warnStyle
	case slog.LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}
