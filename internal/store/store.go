// Package store holds the keyed store shared by every pipeline stage. Keys
// are scope identifiers; values are file descriptors or scope records.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Separator joins the segments of a scope identifier.
const Separator = ":"

var (
	// ErrKeyNotFound is returned when an identifier has no entry.
	ErrKeyNotFound = errors.New("key not found")
	// ErrWrongKind is returned when an entry is not of the requested kind.
	ErrWrongKind = errors.New("wrong entry kind")
)

// Store is a concurrency-safe mapping from identifier to Entry.
type Store struct {
	entries *Map[Entry]
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: NewMap[Entry]()}
}

// Put stores e under its key, replacing any previous entry.
func (s *Store) Put(e Entry) {
	s.entries.Store(e.Key(), e)
}

// Register adds fd unless its id is already present. It returns the entry
// held under the id and whether it was already registered.
func (s *Store) Register(fd *FileDescriptor) (*FileDescriptor, bool, error) {
	actual, loaded := s.entries.LoadOrStore(fd.Identifier, fd)
	if !loaded {
		return fd, false, nil
	}
	existing, ok := actual.(*FileDescriptor)
	if !ok {
		return nil, true, fmt.Errorf("register %q: %w", fd.Identifier, ErrWrongKind)
	}
	return existing, true, nil
}

// Get returns the entry stored under id.
func (s *Store) Get(id string) (Entry, error) {
	e, ok := s.entries.Load(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrKeyNotFound)
	}
	return e, nil
}

// File returns the file descriptor stored under id.
func (s *Store) File(id string) (*FileDescriptor, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	fd, ok := e.(*FileDescriptor)
	if !ok {
		return nil, fmt.Errorf("%q is not a file: %w", id, ErrWrongKind)
	}
	return fd, nil
}

// Scope returns a copy of the scope record stored under id. File ids yield
// the file's own scope record.
func (s *Store) Scope(id string) (ScopeRecord, error) {
	e, err := s.Get(id)
	if err != nil {
		return ScopeRecord{}, err
	}
	return recordOf(e), nil
}

// Delete removes the entry under id.
func (s *Store) Delete(id string) {
	s.entries.Delete(id)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Range calls fn for every entry in unspecified order until fn returns false.
func (s *Store) Range(fn func(e Entry) bool) {
	s.entries.Range(func(_ string, e Entry) bool {
		return fn(e)
	})
}

// Files returns every file descriptor sorted by id.
func (s *Store) Files() []*FileDescriptor {
	var files []*FileDescriptor
	s.Range(func(e Entry) bool {
		if fd, ok := e.(*FileDescriptor); ok {
			files = append(files, fd)
		}
		return true
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Identifier < files[j].Identifier })
	return files
}

// Scopes returns a copy of every scope record, file scopes included, sorted
// by identifier.
func (s *Store) Scopes() []ScopeRecord {
	return s.collect(func(string) bool { return true })
}

// WithPrefix returns the scope record under id and every record nested
// inside it, sorted by identifier. An empty id selects every record.
func (s *Store) WithPrefix(id string) []ScopeRecord {
	if id == "" {
		return s.Scopes()
	}
	return s.collect(func(key string) bool { return Contains(id, key) })
}

func (s *Store) collect(match func(key string) bool) []ScopeRecord {
	var out []ScopeRecord
	s.Range(func(e Entry) bool {
		if match(e.Key()) {
			out = append(out, recordOf(e))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

func recordOf(e Entry) ScopeRecord {
	switch v := e.(type) {
	case *FileDescriptor:
		return v.ScopeRecord
	case *ScopeRecord:
		return *v
	default:
		panic(fmt.Sprintf("store: unexpected entry type %T", e))
	}
}

// Join builds a child scope identifier.
func Join(parent, segment string) string {
	return parent + Separator + segment
}

// Contains reports whether identifier id names scope or a scope nested in it.
func Contains(scope, id string) bool {
	return id == scope || strings.HasPrefix(id, scope+Separator)
}
