package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/imyousuf/codecaliper/internal/syntax"
)

// Registry manages a collection of dialect parsers.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[Dialect]Parser
	extIndex map[string]Parser
	order    []Dialect
}

// NewRegistry creates a new parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers:  make(map[Dialect]Parser),
		extIndex: make(map[string]Parser),
		order:    make([]Dialect, 0),
	}
}

// Register adds a parser to the registry, indexing it by dialect and file extensions.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := p.Dialect()
	if _, exists := r.parsers[d]; !exists {
		r.order = append(r.order, d)
	}
	r.parsers[d] = p
	for _, ext := range p.Extensions() {
		r.extIndex[strings.ToLower(ext)] = p
	}
}

// Get retrieves a parser by dialect.
func (r *Registry) Get(d Dialect) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[d]
	return p, ok
}

// ForPath retrieves the parser whose extension matches path, ignoring case.
func (r *Registry) ForPath(path string) (Parser, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.extIndex[ext]
	return p, ok
}

// Supports reports whether a parser is registered for path's extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Parse parses content with the parser registered for path's extension.
func (r *Registry) Parse(path string, content []byte) (*syntax.Tree, error) {
	p, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedDialect)
	}
	return p.Parse(path, content)
}

// All returns all registered parsers in registration order.
func (r *Registry) All() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Parser, len(r.order))
	for i, d := range r.order {
		result[i] = r.parsers[d]
	}
	return result
}

// SupportedExtensions returns all file extensions that have a registered parser, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extIndex))
	for ext := range r.extIndex {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
