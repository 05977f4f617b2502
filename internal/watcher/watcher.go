package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a file system change type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change below the watched root. Path is relative to the
// root.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its event is
	// emitted. Default: 500ms.
	DebounceWindow time.Duration

	// EventBufferSize is the capacity of the batch channel. Default: 16.
	EventBufferSize int

	// Watch lists hidden base names that are still reported.
	Watch []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 16,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = def.DebounceWindow
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = def.EventBufferSize
	}
	return o
}

// Watcher reports debounced changes below one directory tree.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	opts      Options
	root      string

	events chan []FileEvent
	stopCh chan struct{}

	mu             sync.Mutex
	started        bool
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	opts = opts.withDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		opts:      opts,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches root recursively. Watches are in place when Start returns;
// events are delivered until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher stopped")
	}
	if w.started {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.started = true
	w.root = abs
	w.mu.Unlock()

	if err := w.addRecursive(abs); err != nil {
		_ = w.Stop()
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	go w.forward(ctx)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("pool watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if w.skip(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			if err := w.addRecursive(ev.Name); err != nil {
				slog.Warn("failed to watch new directory", slog.String("path", rel), slog.String("error", err.Error()))
			}
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// skip reports whether rel has a hidden component not listed in Watch.
func (w *Watcher) skip(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, p := range parts {
		if !strings.HasPrefix(p, ".") {
			continue
		}
		if i == len(parts)-1 && slices.Contains(w.opts.Watch, p) {
			return false
		}
		return true
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, _ := filepath.Rel(w.root, path); w.skip(rel) {
				return filepath.SkipDir
			}
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || len(batch) == 0 {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

// Events returns batches of debounced events. The channel is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Stop stops watching and closes Events. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fs.Close()
	close(w.events)
	return err
}
