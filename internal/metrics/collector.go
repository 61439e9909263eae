package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/store"
)

// ErrNotParsed is returned when a file is collected before it was parsed.
var ErrNotParsed = errors.New("file has no syntax tree")

// Collector dispatches files to the walker registered for their dialect.
type Collector struct {
	store *store.Store

	mu      sync.RWMutex
	walkers map[parser.Dialect]Walker
}

// NewCollector creates a collector with no walkers.
func NewCollector(st *store.Store) *Collector {
	return &Collector{store: st, walkers: make(map[parser.Dialect]Walker)}
}

// NewDefaultCollector creates a collector with the scope walker registered
// for C# and Java.
func NewDefaultCollector(st *store.Store) *Collector {
	c := NewCollector(st)
	w := NewWalker(st, parser.DialectCSharp, parser.DialectJava)
	c.Register(parser.DialectCSharp, w)
	c.Register(parser.DialectJava, w)
	return c
}

// Register sets the walker for a dialect.
func (c *Collector) Register(d parser.Dialect, w Walker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.walkers[d] = w
}

// Supports reports whether a walker is registered for path's dialect.
func (c *Collector) Supports(path string) bool {
	_, err := c.walkerFor(path)
	return err == nil
}

func (c *Collector) walkerFor(path string) (Walker, error) {
	d, ok := parser.DialectOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedDialect)
	}
	c.mu.RLock()
	w, ok := c.walkers[d]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", path, d, ErrUnsupportedDialect)
	}
	return w, nil
}

// CollectMetrics walks the parsed file registered under fileID and returns a
// copy of its file scope totals.
func (c *Collector) CollectMetrics(fileID string) (store.ScopeRecord, error) {
	fd, err := c.store.File(fileID)
	if err != nil {
		return store.ScopeRecord{}, err
	}
	w, err := c.walkerFor(fd.Path)
	if err != nil {
		return store.ScopeRecord{}, err
	}
	if fd.Tree == nil {
		return store.ScopeRecord{}, fmt.Errorf("%s: %w", fileID, ErrNotParsed)
	}
	if err := w.Visit(&fd.ScopeRecord, fd.Tree); err != nil {
		return store.ScopeRecord{}, err
	}
	return fd.ScopeRecord, nil
}
