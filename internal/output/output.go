// Package output formats CLI command output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Writer prints command output. Write errors are ignored; this is console
// output.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Successf prints a success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Status("✅", fmt.Sprintf(format, args...))
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Status("⚠️ ", fmt.Sprintf(format, args...))
}

// Errorf prints an error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Status("❌", fmt.Sprintf(format, args...))
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-14s %v\n", key+":", value)
}

// Block prints a titled block of text with each line indented. Empty
// text prints "(empty)".
func (w *Writer) Block(title, text string) {
	_, _ = fmt.Fprintf(w.out, "── %s ──\n", title)
	if strings.TrimSpace(text) == "" {
		_, _ = fmt.Fprintln(w.out, "  (empty)")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
}

// List prints items as a numbered list.
func (w *Writer) List(items []string) {
	for i, item := range items {
		_, _ = fmt.Fprintf(w.out, "%3d. %s\n", i+1, item)
	}
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
