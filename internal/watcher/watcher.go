// Package watcher reports debounced batches of source file changes under an
// analysis root.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imyousuf/codecaliper/internal/input"
)

// DefaultDebounce is the quiet period that closes a batch.
const DefaultDebounce = 100 * time.Millisecond

// EventOp represents the type of file system operation.
type EventOp int

const (
	Create EventOp = iota
	Write
	Remove
	Rename
)

// String returns the string representation of EventOp.
func (op EventOp) String() string {
	switch op {
	case Create:
		return "Create"
	case Write:
		return "Write"
	case Remove:
		return "Remove"
	case Rename:
		return "Rename"
	default:
		return "Unknown"
	}
}

// Event represents a change to one file.
type Event struct {
	Path string
	Op   EventOp
	Time time.Time
}

// Batch holds the changes seen before a quiet period, one event per path
// (the latest), sorted by path.
type Batch []Event

// Paths returns the changed paths.
func (b Batch) Paths() []string {
	out := make([]string, len(b))
	for i, e := range b {
		out[i] = e.Path
	}
	return out
}

// Config holds configuration for a Watcher.
type Config struct {
	Root     string
	Matcher  *input.Matcher         // optional path filter; excluded directories are not watched
	Accept   func(path string) bool // optional file filter, e.g. a parser registry's Supports
	Debounce time.Duration          // 0 means DefaultDebounce
	Verbose  bool
	Logger   func(format string, args ...any)
}

// Watcher watches a directory tree and emits debounced batches.
type Watcher struct {
	cfg Config
	log func(format string, args ...any)

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// New creates a watcher for cfg.Root.
func New(cfg Config) (*Watcher, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", cfg.Root)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	return &Watcher{cfg: cfg, log: logFn}, nil
}

// Start begins watching and returns the batch channel, which is closed when
// ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) (<-chan Batch, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := w.addRecursive(w.cfg.Root, nil); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan Batch, 1)
	go w.eventLoop(ctx, fsw, out)
	return out, nil
}

// Close shuts down the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// addRecursive watches root and every directory below it that is not
// excluded. When found is non-nil it is called for every selected file.
func (w *Watcher) addRecursive(root string, found func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if !d.IsDir() {
			if found != nil && w.selects(path) {
				found(path)
			}
			return nil
		}
		if path != w.cfg.Root && w.cfg.Matcher != nil && w.cfg.Matcher.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// selects reports whether a change to the file at path belongs in a batch.
func (w *Watcher) selects(path string) bool {
	if w.cfg.Matcher != nil && !w.cfg.Matcher.Match(path) {
		return false
	}
	return w.cfg.Accept == nil || w.cfg.Accept(path)
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Batch) {
	defer close(out)

	pending := make(map[string]Event)
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return
			}
			op, valid := convertOp(fsEvent.Op)
			if !valid {
				continue
			}

			// New directories join the watch set. A directory moved in
			// with files already inside raises no events for them, so its
			// selected files are queued as created.
			if op == Create {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					if w.cfg.Matcher == nil || !w.cfg.Matcher.Excluded(fsEvent.Name) {
						now := time.Now()
						err := w.addRecursive(fsEvent.Name, func(path string) {
							pending[path] = Event{Path: path, Op: Create, Time: now}
						})
						if err != nil && w.cfg.Verbose {
							w.log("  %v", err)
						}
						if len(pending) > 0 {
							timer.Reset(w.cfg.Debounce)
						}
					}
					continue
				}
			}
			if !w.selects(fsEvent.Name) {
				continue
			}

			pending[fsEvent.Name] = Event{Path: fsEvent.Name, Op: op, Time: time.Now()}
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make(Batch, 0, len(pending))
			for _, e := range pending {
				batch = append(batch, e)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			clear(pending)

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.cfg.Verbose {
				w.log("  watch error: %v", err)
			}
		}
	}
}

func convertOp(op fsnotify.Op) (EventOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Create, true
	case op.Has(fsnotify.Write):
		return Write, true
	case op.Has(fsnotify.Remove):
		return Remove, true
	case op.Has(fsnotify.Rename):
		return Rename, true
	default:
		return 0, false
	}
}
