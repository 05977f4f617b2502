package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Embedder is the part of an embedding provider the checks probe.
type Embedder interface {
	Available(ctx context.Context) bool
	ModelName() string
	Dimensions() int
}

// Targets are the locations and collaborators to check. Empty fields skip
// their check.
type Targets struct {
	DataDir    string
	MessagesDB string
	PoolDir    string
	Embedder   Embedder
	// MaxOpenIndices sizes the open-file requirement.
	MaxOpenIndices int
}

// Checker runs checks and prints their results.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints result details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets the writer PrintResults uses.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to t.
func (c *Checker) RunAll(ctx context.Context, t Targets) []CheckResult {
	var results []CheckResult
	if t.DataDir != "" {
		results = append(results, c.CheckWritable("data_dir", t.DataDir))
		results = append(results, c.CheckDiskSpace(t.DataDir))
	}
	if t.MessagesDB != "" {
		results = append(results, c.CheckWritable("messages_dir", filepath.Dir(t.MessagesDB)))
	}
	results = append(results, c.CheckFileDescriptors(t.MaxOpenIndices))
	if t.PoolDir != "" {
		results = append(results, c.CheckPool(t.PoolDir))
	}
	if t.Embedder != nil {
		results = append(results, c.CheckEmbedder(ctx, t.Embedder))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints one line per check and a summary.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "convorag system check")
	_, _ = fmt.Fprintln(c.output, "=====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var errs, warns []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errs = append(errs, r.Name+": "+r.Message)
		case r.Status != StatusPass:
			warns = append(warns, r.Name+": "+r.Message)
		}
	}
	c.printList("error(s)", errs)
	c.printList("warning(s)", warns)
}

func (c *Checker) printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "%d %s:\n", len(items), label)
	for _, it := range items {
		_, _ = fmt.Fprintf(c.output, "  - %s\n", it)
	}
}

// CheckWritable creates dir if needed and writes a probe file into it.
func (c *Checker) CheckWritable(name, dir string) CheckResult {
	result := CheckResult{Name: name, Required: true, Details: dir}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create: %v", err)
		return result
	}
	f, err := os.CreateTemp(dir, ".convorag-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckPool verifies the shared document pool can be listed. A missing
// pool only disables discovery.
func (c *Checker) CheckPool(dir string) CheckResult {
	result := CheckResult{Name: "pool_dir", Details: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Status = StatusWarn
		if os.IsNotExist(err) {
			result.Message = "not found (discovery disabled until created)"
		} else {
			result.Message = fmt.Sprintf("cannot read: %v", err)
		}
		return result
	}

	files := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			files++
		}
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d top-level files", files)
	return result
}

// CheckEmbedder probes the embedding provider. Failure is a warning since
// ingestion falls back to zero vectors and keyword ranking.
func (c *Checker) CheckEmbedder(ctx context.Context, e Embedder) CheckResult {
	result := CheckResult{Name: "embedder", Details: e.ModelName()}
	if !e.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s unreachable (vector search degraded)", e.ModelName())
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d dims)", e.ModelName(), e.Dimensions())
	return result
}
