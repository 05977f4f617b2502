package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows a live stage pipeline and embedding progress bar.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	m := newIngestModel()
	if cfg.NoColor {
		m.styles = NoColorStyles()
	}
	return &TUIRenderer{cfg: cfg, model: m, done: make(chan struct{})}
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(nil)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program == nil {
		return nil
	}

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		program.Quit()
		<-r.done
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type progressMsg ProgressEvent
type completeMsg CompletionStats

// ingestModel is the bubbletea model for a single file ingestion.
type ingestModel struct {
	event    ProgressEvent
	stats    CompletionStats
	complete bool
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newIngestModel() *ingestModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	return &ingestModel{
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(40),
		),
		styles: DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(20, min(60, msg.Width-30))
	case progressMsg:
		m.event = ProgressEvent(msg)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	lines := []string{m.renderStages()}
	if m.event.Total > 0 {
		pct := float64(m.event.Current) / float64(m.event.Total)
		lines = append(lines, m.bar.ViewAs(pct)+" "+
			m.styles.Label.Render(fmt.Sprintf("%d / %d chunks", m.event.Current, m.event.Total)))
	}
	if m.event.File != "" {
		lines = append(lines, m.styles.Dim.Render(m.event.File))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *ingestModel) renderStages() string {
	stages := []Stage{StageExtract, StageChunk, StageEmbed, StageStore}
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s < m.event.Stage:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == m.event.Stage:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *ingestModel) renderComplete() string {
	if m.stats.Err != nil {
		return m.styles.Error.Render(fmt.Sprintf("✗ %s: %v", m.stats.File, m.stats.Err)) + "\n"
	}
	lines := []string{
		m.styles.Success.Render("✓ Ingested " + m.stats.File),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Chunks:  "),
			m.styles.Active.Render(fmt.Sprintf("%d stored of %d", m.stats.Stored, m.stats.Chunks))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"),
			m.styles.Active.Render(m.stats.Duration.Round(time.Millisecond).String())),
	}
	if m.stats.Embedder != "" {
		lines = append(lines, fmt.Sprintf("%s %s", m.styles.Label.Render("Embedder:"),
			fmt.Sprintf("%s (%d dims)", m.stats.Embedder, m.stats.Dimensions)))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

var _ Renderer = (*TUIRenderer)(nil)
