package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var ce *ConvoError
	if !errors.As(err, &ce) {
		ce = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ce.Message)
	if ce.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ce.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ce.Code)
	return sb.String()
}

// LogAttrs returns slog attributes describing err. Plain errors produce a
// single "error" attribute.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	var ce *ConvoError
	if !errors.As(err, &ce) {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", ce.Code),
		slog.String("error", ce.Message),
		slog.String("category", string(ce.Category)),
		slog.Bool("retryable", ce.Retryable),
	}
	if ce.Cause != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause.Error()))
	}

	keys := make([]string, 0, len(ce.Details))
	for k := range ce.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, ce.Details[k]))
	}
	return attrs
}
